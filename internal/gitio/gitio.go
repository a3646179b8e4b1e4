// Package gitio provides the Git repository I/O for burn-in analysis,
// built on go-git. Change detection uses merge-base semantics: files are
// diffed between the common ancestor of the base ref and HEAD, so commits
// on the base branch after the fork point do not show up as changes.
package gitio

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository indicates the working directory is not inside a Git
// repository.
var ErrNotRepository = errors.New("not a git repository")

// InvalidReferenceError indicates a ref name that failed sanitization and
// was never handed to the object store.
type InvalidReferenceError struct {
	Ref string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid git reference %q", e.Ref)
}

// UnknownReferenceError indicates a well-formed ref that does not resolve
// to any commit in the repository.
type UnknownReferenceError struct {
	Ref string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown git reference %q", e.Ref)
}

// refPattern is the allowlist for ref names. Anything outside it is
// rejected before the repository is touched.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// ValidateRef rejects ref names containing characters outside the
// conservative allowlist.
func ValidateRef(ref string) error {
	if ref == "" || !refPattern.MatchString(ref) {
		return &InvalidReferenceError{Ref: ref}
	}
	return nil
}

// Repository wraps an opened go-git repository rooted at a working tree.
type Repository struct {
	repo *git.Repository
	root string
}

// Open locates the repository containing dir, searching parent
// directories the way git itself does.
func Open(dir string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("resolving worktree: %w", err)
	}

	return &Repository{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the absolute path of the working tree root.
func (r *Repository) Root() string {
	return r.root
}

// ResolveRef resolves a branch, tag, or commit hash to a commit. The ref
// is validated before any repository access.
func (r *Repository) ResolveRef(ref string) (*object.Commit, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, &UnknownReferenceError{Ref: ref}
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", hash, err)
	}
	return commit, nil
}

// Head returns the commit the working tree is currently on.
func (r *Repository) Head() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("loading HEAD commit: %w", err)
	}
	return commit, nil
}

// ChangedFiles returns the repository-relative paths that differ between
// the merge base of baseRef and HEAD, and HEAD itself. The result is
// sorted and de-duplicated; renames contribute both sides.
func (r *Repository) ChangedFiles(baseRef string) ([]string, error) {
	base, err := r.ResolveRef(baseRef)
	if err != nil {
		return nil, err
	}
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	ancestors, err := base.MergeBase(head)
	if err != nil {
		return nil, fmt.Errorf("computing merge base of %s and HEAD: %w", baseRef, err)
	}
	from := base
	if len(ancestors) > 0 {
		from = ancestors[0]
	}

	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading base tree: %w", err)
	}
	headTree, err := head.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading head tree: %w", err)
	}

	changes, err := fromTree.Diff(headTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s...HEAD: %w", baseRef, err)
	}

	seen := make(map[string]struct{})
	for _, ch := range changes {
		for _, name := range []string{ch.From.Name, ch.To.Name} {
			if name == "" {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// TrackedFiles returns the sorted repository-relative paths of every file
// in the HEAD tree.
func (r *Repository) TrackedFiles() ([]string, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	tree, err := head.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading head tree: %w", err)
	}

	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking head tree: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile returns the contents of a tracked file at HEAD.
func (r *Repository) ReadFile(path string) ([]byte, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	tree, err := head.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading head tree: %w", err)
	}
	f, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s at HEAD: %w", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading %s at HEAD: %w", path, err)
	}
	return []byte(content), nil
}
