package message

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samzong/gco/internal/diffsum"
)

func files(statuses ...diffsum.FileStatus) diffsum.Summary {
	var sum diffsum.Summary
	for i, st := range statuses {
		sum.Files = append(sum.Files, diffsum.FileChange{Path: fmt.Sprintf("docs/file%d.md", i), Status: st, Added: 1})
		sum.FilesChanged++
		sum.Insertions++
	}
	return sum
}

func TestCompose_Subject(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "single modified file",
			in:   Input{Summary: files(diffsum.StatusModified)},
			want: "Update file0.md",
		},
		{
			name: "label wins",
			in:   Input{Label: "my  book", Summary: files(diffsum.StatusModified, diffsum.StatusAdded)},
			want: "Update my book (2 files)",
		},
		{
			name: "all added",
			in:   Input{Summary: files(diffsum.StatusAdded, diffsum.StatusAdded)},
			want: "Add project files (2 files)",
		},
		{
			name: "all deleted",
			in:   Input{Summary: files(diffsum.StatusDeleted)},
			want: "Remove file0.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.in).Subject)
		})
	}
}

func TestCompose_LongLabelKeepsCount(t *testing.T) {
	label := strings.Repeat("chapter ", 20)
	c := Compose(Input{Label: label, Summary: files(diffsum.StatusModified, diffsum.StatusModified, diffsum.StatusModified)})

	assert.LessOrEqual(t, utf8.RuneCountInString(c.Subject), MaxSubjectLength)
	assert.True(t, strings.HasPrefix(c.Subject, "Update chapter chapter"))
	assert.True(t, strings.HasSuffix(c.Subject, " (3 files)"))
	assert.NotContains(t, c.Subject, "  ")
}

func TestCompose_OverlongWordFallsBack(t *testing.T) {
	long := strings.Repeat("x", 80)
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "label",
			in:   Input{Label: long, Summary: files(diffsum.StatusModified, diffsum.StatusModified)},
			want: "Update project files (2 files)",
		},
		{
			name: "single file name",
			in: Input{Summary: diffsum.Summary{
				FilesChanged: 1,
				Files:        []diffsum.FileChange{{Path: "docs/" + long + ".md", Status: diffsum.StatusAdded}},
			}},
			want: "Add project files",
		},
		{
			name: "later words dropped whole",
			in:   Input{Label: "intro " + long, Summary: files(diffsum.StatusModified, diffsum.StatusModified)},
			want: "Update intro (2 files)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.in).Subject)
		})
	}
}

// Every word of a composed subject is either fixed text or a whole word of
// the input label; no word is a truncated prefix of a longer one.
func TestCompose_SubjectNeverSplitsWords(t *testing.T) {
	labels := []string{
		strings.Repeat("x", 80),
		strings.Repeat("abcdefghij", 7) + "klm",
		"release " + strings.Repeat("notes", 15),
		strings.Repeat("chapter ", 12),
		strings.Repeat("word-with-hyphens_and_underscores ", 4),
		"第一章 " + strings.Repeat("目录", 40),
		"short",
	}
	counts := []int{1, 2, 12, 1500}

	for _, label := range labels {
		inputWords := map[string]bool{}
		for _, w := range strings.Fields(label) {
			inputWords[w] = true
		}
		for _, n := range counts {
			statuses := make([]diffsum.FileStatus, n)
			for i := range statuses {
				statuses[i] = diffsum.StatusModified
			}
			subject := Compose(Input{Label: label, Summary: files(statuses...)}).Subject

			assert.LessOrEqual(t, utf8.RuneCountInString(subject), MaxSubjectLength, subject)
			for _, w := range strings.Fields(subject) {
				if inputWords[w] {
					continue
				}
				for in := range inputWords {
					assert.False(t, strings.HasPrefix(in, w), "subject %q cuts label word %q to %q", subject, in, w)
				}
			}
		}
	}
}

func TestCompose_Deterministic(t *testing.T) {
	in := Input{Scope: "projects/my-book", Label: "book", Summary: files(diffsum.StatusModified, diffsum.StatusAdded)}
	assert.Equal(t, Compose(in), Compose(in))
}

func TestCompose_Body(t *testing.T) {
	sum := diffsum.Summary{
		FilesChanged:   1,
		Insertions:     1,
		Deletions:      1,
		Files:          []diffsum.FileChange{{Path: "projects/my-book/chapter.md", Status: diffsum.StatusModified, Added: 1, Deleted: 1}},
		EditedHeadings: []diffsum.HeadingEdit{{Old: "Old", New: "New"}},
		TitleChange:    &diffsum.TitleChange{Old: "Draft", New: "Final"},
	}
	c := Compose(Input{Scope: "projects/my-book", Summary: sum})

	want := `Scope: projects/my-book
Changes: 1 file, +1/-1

Files:
- projects/my-book/chapter.md (modified, +1/-1)

Headings edited:
- Old -> New

Title:
- "Draft" -> "Final"`
	assert.Equal(t, "Update chapter.md", c.Subject)
	assert.Equal(t, want, c.Body)
	assert.Equal(t, "Update chapter.md\n\n"+want, c.String())
}

func TestCompose_BodyElision(t *testing.T) {
	var sum diffsum.Summary
	for i := 0; i < 15; i++ {
		sum.Files = append(sum.Files, diffsum.FileChange{Path: fmt.Sprintf("f%02d.md", i), Status: diffsum.StatusAdded, Added: 1})
		sum.AddedHeadings = append(sum.AddedHeadings, fmt.Sprintf("H%02d", i))
	}
	sum.FilesChanged = 15
	sum.Insertions = 15

	body := Compose(Input{Summary: sum}).Body

	assert.Contains(t, body, "Scope: all changes")
	assert.Contains(t, body, "- f11.md (added, +1/-0)")
	assert.NotContains(t, body, "- f12.md")
	assert.Contains(t, body, "- ...and 3 more")
	assert.Contains(t, body, "- H09")
	assert.NotContains(t, body, "- H10")
	assert.Contains(t, body, "- ...and 5 more")
}

func TestCompose_BinaryFile(t *testing.T) {
	sum := diffsum.Summary{
		FilesChanged: 1,
		Files:        []diffsum.FileChange{{Path: "cover.png", Status: diffsum.StatusAdded, Binary: true}},
	}
	c := Compose(Input{Summary: sum})
	assert.Equal(t, "Add cover.png", c.Subject)
	assert.Contains(t, c.Body, "- cover.png (added, binary)")
}

func TestTruncateSubject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short", in: "Update notes", max: 72, want: "Update notes"},
		{name: "word boundary", in: "Update the quick brown fox", max: 14, want: "Update the"},
		{name: "boundary at cut", in: "Update the quick", max: 10, want: "Update the"},
		{name: "single long word", in: strings.Repeat("x", 80), max: 72, want: ""},
		{name: "long first word", in: strings.Repeat("x", 20) + " tail", max: 10, want: ""},
		{name: "multibyte", in: "更新 章节标题和目录结构", max: 5, want: "更新"},
		{name: "zero", in: "abc", max: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateSubject(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.max, 0))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   Commit
		wantOK bool
	}{
		{
			name:   "two parts",
			raw:    "Revise chapter heading\n\nRenames the opening section.",
			want:   Commit{Subject: "Revise chapter heading", Body: "Renames the opening section."},
			wantOK: true,
		},
		{
			name:   "crlf and fence",
			raw:    "```\r\nRevise heading\r\n\r\nBody line\r\n```",
			want:   Commit{Subject: "Revise heading", Body: "Body line"},
			wantOK: true,
		},
		{name: "subject only", raw: "Just a subject"},
		{name: "no blank line", raw: "Subject\nbody continues"},
		{name: "empty body", raw: "Subject\n\n   "},
		{name: "empty", raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
