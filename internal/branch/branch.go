package branch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samzong/gco/internal/gitutil"
)

// TimestampLayout is the second-resolution stamp that ends every branch name.
const TimestampLayout = "2006-01-02-15-04-05"

// MaxSuffix bounds collision disambiguation: name, name-1, ..., name-9.
const MaxSuffix = 9

const maxLabelLength = 40

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

	// ErrCreate marks a branch that could not be allocated or created.
	ErrCreate = errors.New("branch creation failed")
)

// Sanitize lowercases label, collapses runs of other characters into a
// single hyphen and trims hyphens from both ends.
func Sanitize(label string) string {
	cleaned := nonAlphanumericRegex.ReplaceAllString(strings.ToLower(label), "-")
	cleaned = strings.Trim(cleaned, "-")
	return limitLength(cleaned, maxLabelLength)
}

// GenerateName builds prefix[/label]/timestamp. An empty sanitized label is omitted.
func GenerateName(prefix, label string, now time.Time) string {
	parts := []string{strings.Trim(prefix, "/")}
	if cleaned := Sanitize(label); cleaned != "" {
		parts = append(parts, cleaned)
	}
	parts = append(parts, now.Format(TimestampLayout))
	return strings.Join(parts, "/")
}

// limitLength truncates the string to maxLength and drops a dangling hyphen.
func limitLength(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return strings.Trim(text[:maxLength], "-")
}

// Git is the subset of git operations the allocator needs.
type Git interface {
	RefExists(ctx context.Context, ref string) bool
	CreateBranch(ctx context.Context, name, startPoint string) error
}

type Options struct {
	Prefix string
	Remote string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Allocator creates uniquely named automation branches off trunk.
type Allocator struct {
	git  Git
	opts Options
}

func NewAllocator(g Git, opts Options) *Allocator {
	if opts.Prefix == "" {
		opts.Prefix = "gco"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Allocator{git: g, opts: opts}
}

// Allocate picks a fresh name for label, creates it at trunk's tip and checks it out.
func (a *Allocator) Allocate(ctx context.Context, label, trunk string) (string, error) {
	trunkRef := "refs/heads/" + trunk
	if !a.git.RefExists(ctx, trunkRef) {
		return "", fmt.Errorf("%w: trunk %s has no commits", ErrCreate, trunk)
	}

	base := GenerateName(a.opts.Prefix, label, a.opts.Now())
	name, err := a.firstFree(ctx, base)
	if err != nil {
		return "", err
	}
	if err := gitutil.ValidateBranchName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreate, err)
	}
	if err := a.git.CreateBranch(ctx, name, trunkRef); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreate, err)
	}
	return name, nil
}

func (a *Allocator) firstFree(ctx context.Context, base string) (string, error) {
	for i := 0; i <= MaxSuffix; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		if !a.taken(ctx, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s and its %d suffixed variants already exist", ErrCreate, base, MaxSuffix)
}

func (a *Allocator) taken(ctx context.Context, name string) bool {
	if a.git.RefExists(ctx, "refs/heads/"+name) {
		return true
	}
	return a.opts.Remote != "" && a.git.RefExists(ctx, "refs/remotes/"+a.opts.Remote+"/"+name)
}
