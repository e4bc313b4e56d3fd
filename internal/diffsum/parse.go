package diffsum

import (
	"strconv"
	"strings"
)

// patchFile is one file section of a zero-context staged diff.
type patchFile struct {
	Path     string
	Status   FileStatus
	IsBinary bool
	Hunks    []hunk
}

// hunk is one edit region. With -U0 every hunk holds only changed lines.
type hunk struct {
	Removed []string
	Added   []string
}

type numstatEntry struct {
	Path     string
	Added    int
	Deleted  int
	IsBinary bool
}

func parsePatch(raw string) []patchFile {
	if !strings.Contains(raw, "diff --") {
		return nil
	}

	var files []patchFile
	var current *patchFile
	inHunk := false

	for _, line := range strings.Split(raw, "\n") {
		if isDiffHeader(line) {
			if current != nil {
				files = append(files, *current)
			}
			current = &patchFile{Path: parseDiffHeaderPath(line), Status: StatusModified}
			inHunk = false
			continue
		}
		if current == nil {
			continue
		}

		if isHunkHeader(line) {
			inHunk = true
			current.Hunks = append(current.Hunks, hunk{})
			continue
		}

		if inHunk {
			h := &current.Hunks[len(current.Hunks)-1]
			switch {
			case strings.HasPrefix(line, "+"):
				h.Added = append(h.Added, line[1:])
			case strings.HasPrefix(line, "-"):
				h.Removed = append(h.Removed, line[1:])
			}
			continue
		}

		applyHeaderLine(current, line)
	}

	if current != nil {
		files = append(files, *current)
	}
	return files
}

func isDiffHeader(line string) bool {
	return strings.HasPrefix(line, "diff --git ")
}

func isHunkHeader(line string) bool {
	return strings.HasPrefix(line, "@@ ")
}

// parseDiffHeaderPath extracts the path from "diff --git a/P b/P". Renames
// are disabled, so both sides name the same path and the split is exact even
// when P contains spaces.
func parseDiffHeaderPath(line string) string {
	rest := strings.TrimPrefix(line, "diff --git ")
	if strings.HasPrefix(rest, "\"") {
		if end := closingQuote(rest); end > 0 {
			return normalizeDiffPath(rest[:end+1], "a/")
		}
	}
	if n := len(rest); n >= 5 && (n-5)%2 == 0 {
		return normalizeDiffPath(rest[:(n-1)/2], "a/")
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return normalizeDiffPath(fields[0], "a/")
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func normalizeDiffPath(path string, prefix string) string {
	path = unquotePath(strings.TrimSpace(path))
	return strings.TrimPrefix(path, prefix)
}

// unquotePath reverses git's C-style quoting of unusual file names.
func unquotePath(path string) string {
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		if unquoted, err := strconv.Unquote(path); err == nil {
			return unquoted
		}
		return path[1 : len(path)-1]
	}
	return path
}

func applyHeaderLine(file *patchFile, line string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "new file mode "):
		file.Status = StatusAdded
	case strings.HasPrefix(line, "deleted file mode "):
		file.Status = StatusDeleted
	case strings.HasPrefix(line, "+++ ") && line != "+++ /dev/null":
		file.Path = normalizeDiffPath(strings.TrimPrefix(line, "+++ "), "b/")
	case strings.HasPrefix(line, "--- ") && line != "--- /dev/null" && file.Status == StatusDeleted:
		file.Path = normalizeDiffPath(strings.TrimPrefix(line, "--- "), "a/")
	case strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch"):
		file.IsBinary = true
	}
}

func parseNumstat(raw string) []numstatEntry {
	var entries []numstatEntry
	for _, line := range strings.Split(raw, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		entry := numstatEntry{Path: unquotePath(strings.TrimSpace(parts[2]))}
		if parts[0] == "-" && parts[1] == "-" {
			entry.IsBinary = true
		} else {
			entry.Added, _ = strconv.Atoi(parts[0])
			entry.Deleted, _ = strconv.Atoi(parts[1])
		}
		entries = append(entries, entry)
	}
	return entries
}

func countHunkChanges(hunks []hunk) (int, int) {
	added, deleted := 0, 0
	for _, h := range hunks {
		added += len(h.Added)
		deleted += len(h.Removed)
	}
	return added, deleted
}
