// Package diffsum derives a structured summary from the staged diff: file
// counts and line totals, Markdown headings added or edited, and a changed
// document title. Heading detection is a line-pattern heuristic.
package diffsum

import (
	"context"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/samzong/gco/internal/stringsutil"
)

// MaxFiles bounds the per-file list; FilesChanged always holds the full count.
const MaxFiles = 50

// MaxHeadingLength caps heading text kept in the summary.
const MaxHeadingLength = 80

type FileStatus string

const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusDeleted  FileStatus = "deleted"
)

type FileChange struct {
	Path    string
	Status  FileStatus
	Added   int
	Deleted int
	Binary  bool
}

// HeadingEdit is a heading whose text changed in place.
type HeadingEdit struct {
	Old string
	New string
}

// TitleChange is a document title that changed value.
type TitleChange struct {
	Old string
	New string
}

// Summary is derived purely from the staged diff.
type Summary struct {
	FilesChanged   int
	Insertions     int
	Deletions      int
	Files          []FileChange
	AddedHeadings  []string
	EditedHeadings []HeadingEdit
	TitleChange    *TitleChange
}

// IsEmpty reports a diff with no changed files.
func (s Summary) IsEmpty() bool {
	return s.FilesChanged == 0
}

// AllAdded reports whether every changed file is new.
func (s Summary) AllAdded() bool {
	return s.allStatus(StatusAdded)
}

// AllDeleted reports whether every changed file was removed.
func (s Summary) AllDeleted() bool {
	return s.allStatus(StatusDeleted)
}

func (s Summary) allStatus(status FileStatus) bool {
	if s.IsEmpty() || len(s.Files) < s.FilesChanged {
		return false
	}
	for _, f := range s.Files {
		if f.Status != status {
			return false
		}
	}
	return true
}

// Source provides the staged diff.
type Source interface {
	StagedNumstat(ctx context.Context, pathspec ...string) (string, error)
	StagedPatch(ctx context.Context, pathspec ...string) (string, error)
}

// Summarize reads the staged diff limited to pathspec and summarizes it.
func Summarize(ctx context.Context, src Source, pathspec ...string) (Summary, error) {
	numstat, err := src.StagedNumstat(ctx, pathspec...)
	if err != nil {
		return Summary{}, err
	}
	patch, err := src.StagedPatch(ctx, pathspec...)
	if err != nil {
		return Summary{}, err
	}
	return Parse(numstat, patch), nil
}

// Parse builds a Summary from numstat output and a zero-context patch.
func Parse(numstat, patch string) Summary {
	files := parsePatch(patch)
	byPath := make(map[string]*patchFile, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}

	entries := parseNumstat(numstat)
	if len(entries) == 0 {
		for _, f := range files {
			added, deleted := countHunkChanges(f.Hunks)
			entries = append(entries, numstatEntry{Path: f.Path, Added: added, Deleted: deleted, IsBinary: f.IsBinary})
		}
	}

	var sum Summary
	var added []string
	for _, e := range entries {
		change := FileChange{Path: e.Path, Status: StatusModified, Added: e.Added, Deleted: e.Deleted, Binary: e.IsBinary}
		pf := byPath[e.Path]
		if pf != nil {
			change.Status = pf.Status
			change.Binary = change.Binary || pf.IsBinary
		}

		sum.FilesChanged++
		sum.Insertions += e.Added
		sum.Deletions += e.Deleted
		if len(sum.Files) < MaxFiles {
			sum.Files = append(sum.Files, change)
		}

		if pf == nil || change.Binary {
			continue
		}
		if isMarkdown(e.Path) {
			newHeadings, edits := scanHeadings(pf.Hunks)
			added = append(added, newHeadings...)
			sum.EditedHeadings = append(sum.EditedHeadings, edits...)
		}
		if sum.TitleChange == nil {
			sum.TitleChange = scanTitle(e.Path, pf.Hunks)
		}
	}
	if len(added) > 0 {
		sum.AddedHeadings = stringsutil.UniqueStrings(added)
	}
	return sum
}

var markdownExts = map[string]bool{
	".md": true, ".markdown": true, ".mdown": true, ".mkd": true, ".mdx": true,
}

func isMarkdown(p string) bool {
	return markdownExts[strings.ToLower(path.Ext(p))]
}

var (
	headingRegex        = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]+(.*))?$`)
	closingHashesRegex  = regexp.MustCompile(`(?:^|[ \t]+)#+[ \t]*$`)
	jsonTitleRegex      = regexp.MustCompile(`^\s*"title"\s*:\s*"((?:[^"\\]|\\.)*)"\s*,?\s*$`)
	frontMatterTitleReg = regexp.MustCompile(`^title:\s*(.+?)\s*$`)
)

// headingText returns the text of an ATX heading line, or "" if line is not one.
func headingText(line string) string {
	m := headingRegex.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	text := strings.TrimSpace(closingHashesRegex.ReplaceAllString(m[1], ""))
	return stringsutil.TruncateRunes(text, MaxHeadingLength)
}

// scanHeadings pairs removed and added headings inside each edit region, in
// order. Pairs with different text are edits; leftover added headings are new.
func scanHeadings(hunks []hunk) ([]string, []HeadingEdit) {
	var added []string
	var edits []HeadingEdit
	for _, h := range hunks {
		removed := collectHeadings(h.Removed)
		inserted := collectHeadings(h.Added)
		paired := min(len(removed), len(inserted))
		for i := 0; i < paired; i++ {
			if removed[i] != inserted[i] {
				edits = append(edits, HeadingEdit{Old: removed[i], New: inserted[i]})
			}
		}
		added = append(added, inserted[paired:]...)
	}
	return added, edits
}

func collectHeadings(lines []string) []string {
	var out []string
	for _, line := range lines {
		if text := headingText(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// scanTitle looks for a title field removed and re-added with a new value.
func scanTitle(p string, hunks []hunk) *TitleChange {
	ext := strings.ToLower(path.Ext(p))
	var extract func(string) (string, bool)
	switch {
	case ext == ".json":
		extract = jsonTitle
	case isMarkdown(p) || ext == ".yaml" || ext == ".yml":
		extract = frontMatterTitle
	default:
		return nil
	}

	var oldTitle, newTitle string
	var haveOld, haveNew bool
	for _, h := range hunks {
		for _, line := range h.Removed {
			if v, ok := extract(line); ok && !haveOld {
				oldTitle, haveOld = v, true
			}
		}
		for _, line := range h.Added {
			if v, ok := extract(line); ok && !haveNew {
				newTitle, haveNew = v, true
			}
		}
	}
	if !haveOld || !haveNew || oldTitle == newTitle {
		return nil
	}
	return &TitleChange{Old: oldTitle, New: newTitle}
}

func jsonTitle(line string) (string, bool) {
	m := jsonTitleRegex.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if v, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
		return v, true
	}
	return m[1], true
}

func frontMatterTitle(line string) (string, bool) {
	m := frontMatterTitleReg.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	v := m[1]
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	return v, v != ""
}
