// Package message composes deterministic commit messages from a diff summary.
package message

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/samzong/gco/internal/diffsum"
	"github.com/samzong/gco/internal/stringsutil"
)

// MaxSubjectLength is the subject cap in runes.
const MaxSubjectLength = 72

const (
	maxBodyFiles    = 12
	maxBodyHeadings = 10

	// genericObject names the change when no label or file name fits.
	genericObject = "project files"
)

// Commit is a two-part commit message.
type Commit struct {
	Subject string
	Body    string
}

// String renders subject and body separated by one blank line.
func (c Commit) String() string {
	if strings.TrimSpace(c.Body) == "" {
		return c.Subject
	}
	return c.Subject + "\n\n" + c.Body
}

// Input is everything the composer looks at.
type Input struct {
	// Scope is the project path, or "" for all changes.
	Scope   string
	Label   string
	Summary diffsum.Summary
}

// Compose builds the message. Identical input always yields identical output.
func Compose(in Input) Commit {
	return Commit{
		Subject: subject(in),
		Body:    body(in),
	}
}

func subject(in Input) string {
	sum := in.Summary
	verb := "Update"
	switch {
	case sum.AllAdded():
		verb = "Add"
	case sum.AllDeleted():
		verb = "Remove"
	}

	object := strings.Join(strings.Fields(in.Label), " ")
	if object == "" && sum.FilesChanged == 1 && len(sum.Files) == 1 {
		object = path.Base(sum.Files[0].Path)
	}

	suffix := ""
	if sum.FilesChanged > 1 {
		suffix = " (" + stringsutil.Plural(sum.FilesChanged, "file", "files") + ")"
	}

	budget := MaxSubjectLength - utf8.RuneCountInString(verb) - 1 - utf8.RuneCountInString(suffix)
	object = TruncateSubject(object, budget)
	if object == "" {
		object = genericObject
	}
	return verb + " " + object + suffix
}

// TruncateSubject cuts s to at most max runes at the last word boundary. It
// never splits a word, so a first word longer than max yields "".
func TruncateSubject(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if runes[max] == ' ' {
		return strings.TrimRight(cut, " ")
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return strings.TrimRight(cut[:i], " ")
	}
	return ""
}

func body(in Input) string {
	sum := in.Summary
	var sections []string

	scopeLine := "Scope: all changes"
	if in.Scope != "" {
		scopeLine = "Scope: " + in.Scope
	}
	sections = append(sections, fmt.Sprintf("%s\nChanges: %s, +%d/-%d",
		scopeLine, stringsutil.Plural(sum.FilesChanged, "file", "files"), sum.Insertions, sum.Deletions))

	if len(sum.Files) > 0 {
		lines := []string{"Files:"}
		shown := sum.Files
		if len(shown) > maxBodyFiles {
			shown = shown[:maxBodyFiles]
		}
		for _, f := range shown {
			lines = append(lines, "- "+describeFile(f))
		}
		if more := sum.FilesChanged - len(shown); more > 0 {
			lines = append(lines, fmt.Sprintf("- ...and %d more", more))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(sum.AddedHeadings) > 0 {
		lines := []string{"Headings added:"}
		shown := sum.AddedHeadings
		if len(shown) > maxBodyHeadings {
			shown = shown[:maxBodyHeadings]
		}
		for _, h := range shown {
			lines = append(lines, "- "+h)
		}
		if more := len(sum.AddedHeadings) - len(shown); more > 0 {
			lines = append(lines, fmt.Sprintf("- ...and %d more", more))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(sum.EditedHeadings) > 0 {
		lines := []string{"Headings edited:"}
		shown := sum.EditedHeadings
		if len(shown) > maxBodyHeadings {
			shown = shown[:maxBodyHeadings]
		}
		for _, e := range shown {
			lines = append(lines, fmt.Sprintf("- %s -> %s", e.Old, e.New))
		}
		if more := len(sum.EditedHeadings) - len(shown); more > 0 {
			lines = append(lines, fmt.Sprintf("- ...and %d more", more))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if t := sum.TitleChange; t != nil {
		sections = append(sections, fmt.Sprintf("Title:\n- %q -> %q", t.Old, t.New))
	}

	return strings.Join(sections, "\n\n")
}

func describeFile(f diffsum.FileChange) string {
	if f.Binary {
		return fmt.Sprintf("%s (%s, binary)", f.Path, f.Status)
	}
	return fmt.Sprintf("%s (%s, +%d/-%d)", f.Path, f.Status, f.Added, f.Deleted)
}

// Parse splits raw text into subject and body. It reports false unless the
// text has a single-line subject, a blank line, and a non-empty body.
func Parse(raw string) (Commit, bool) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = stripFence(strings.TrimSpace(text))

	head, rest, ok := strings.Cut(text, "\n\n")
	if !ok {
		return Commit{}, false
	}
	head = strings.TrimSpace(head)
	rest = strings.TrimSpace(rest)
	if head == "" || rest == "" || strings.Contains(head, "\n") {
		return Commit{}, false
	}
	return Commit{Subject: head, Body: rest}, true
}

// stripFence removes a Markdown code fence wrapped around the whole text.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
