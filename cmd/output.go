package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samzong/gco/internal/stringsutil"
	"github.com/samzong/gco/internal/workflow"
)

var (
	outWriterFunc = func() io.Writer { return os.Stdout }
	errWriterFunc = func() io.Writer { return os.Stderr }
)

func init() {
	outWriterFunc = func() io.Writer { return rootCmd.OutOrStdout() }
	errWriterFunc = func() io.Writer { return rootCmd.ErrOrStderr() }
}

func outWriter() io.Writer {
	return outWriterFunc()
}

func errWriter() io.Writer {
	return errWriterFunc()
}

var statusColors = map[workflow.Status]lipgloss.Color{
	workflow.StatusSuccess:  lipgloss.Color("2"),
	workflow.StatusDegraded: lipgloss.Color("3"),
	workflow.StatusBlocked:  lipgloss.Color("5"),
	workflow.StatusFatal:    lipgloss.Color("1"),
}

// renderOutcome prints a run result. Colors are only emitted when w is a terminal.
func renderOutcome(w io.Writer, o *workflow.Outcome) {
	r := lipgloss.NewRenderer(w)
	badge := r.NewStyle().Bold(true).Padding(0, 1).
		Foreground(lipgloss.Color("0")).
		Background(statusColors[o.Status])
	key := r.NewStyle().Faint(true)

	fmt.Fprintf(w, "%s %s\n", badge.Render(strings.ToUpper(string(o.Status))), o.Summary)

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", key.Render(name+":"), value)
		}
	}
	field("branch", o.Branch)
	if o.Commit != "" {
		field("commit", stringsutil.ShortHash(o.Commit, 12, ""))
	}
	if o.Message != nil {
		field("message", o.Message.Subject)
	}
	field("review", o.ReviewURL)
	field("cleanup", o.CleanupState)

	for _, n := range o.Notes {
		fmt.Fprintf(w, "  - %s\n", n)
	}
	if o.Suggestion != "" {
		hint := "try"
		if o.Retryable {
			hint = "retry with"
		}
		fmt.Fprintf(w, "  %s %s\n", key.Render(hint+":"), r.NewStyle().Bold(true).Render(o.Suggestion))
	}
}

func renderStatus(w io.Writer, report *workflow.StatusReport) {
	st := report.State
	key := lipgloss.NewRenderer(w).NewStyle().Faint(true)
	line := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", key.Render(fmt.Sprintf("%-12s", name+":")), value)
	}

	line("repository", st.Root)
	current := st.CurrentBranch
	if current == "" {
		current = "(detached)"
	}
	line("branch", current)

	trunk := st.Trunk
	if !st.TrunkExists {
		trunk += " (missing)"
	}
	line("trunk", trunk)

	if st.HasRemote {
		line("remote", fmt.Sprintf("%s (%s)", st.Remote, st.Relation))
	} else {
		line("remote", st.Remote+" (not configured)")
	}
	if st.Dirty {
		line("worktree", "uncommitted changes")
	} else {
		line("worktree", "clean")
	}
	if report.LastBranch != "" {
		line("last branch", report.LastBranch)
	}
}
