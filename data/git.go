package data

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"publicresolvers/render"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrNotRepository is returned when the output directory is not inside a git work tree.
	ErrNotRepository = errors.New("data: output directory is not in a git repository")
	// ErrNothingToCommit is returned when the artifacts match the last commit.
	ErrNothingToCommit = errors.New("data: nothing to commit")
	// ErrForeignStaged is returned when the index already holds staged
	// changes to files that are not artifacts of this run.
	ErrForeignStaged = errors.New("data: index has staged changes outside the artifacts")
)

// CommitOptions describes the commit created by CommitArtifacts.
type CommitOptions struct {
	Message     string
	AuthorName  string
	AuthorEmail string
	When        time.Time
}

// CommitMessage is the default commit message for a run stamped with timestamp.
func CommitMessage(timestamp string) string {
	return "Update public DNS resolvers " + timestamp
}

// CommitArtifacts stages the artifacts written below baseDir and records a
// single local commit, returning its hash. Nothing is pushed. The commit is
// refused with ErrForeignStaged when other paths are already staged, since
// the commit would include them.
func CommitArtifacts(baseDir string, artifacts []render.Artifact, opts CommitOptions) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("data: resolve %s: %w", baseDir, err)
	}
	repo, err := git.PlainOpenWithOptions(absBase, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", ErrNotRepository
	}
	if err != nil {
		return "", fmt.Errorf("data: git open: %w", err)
	}
	w, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("data: git worktree: %w", err)
	}
	root, err := filepath.EvalSymlinks(w.Filesystem.Root())
	if err != nil {
		return "", fmt.Errorf("data: git root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absBase); err == nil {
		absBase = resolved
	}

	paths := make([]string, 0, len(artifacts))
	owned := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		if err := checkArtifactPath(a.Path); err != nil {
			return "", err
		}
		rel, err := filepath.Rel(root, ArtifactPath(absBase, a))
		if err != nil {
			return "", fmt.Errorf("data: git path for %s: %w", a.Path, err)
		}
		rel = filepath.ToSlash(rel)
		paths = append(paths, rel)
		owned[rel] = true
	}

	before, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("data: git status: %w", err)
	}
	for path, s := range before {
		if isStaged(s.Staging) && !owned[path] {
			return "", fmt.Errorf("%w: %s", ErrForeignStaged, path)
		}
	}

	for _, rel := range paths {
		if _, err := w.Add(rel); err != nil {
			return "", fmt.Errorf("data: git add %s: %w", rel, err)
		}
	}

	status, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("data: git status: %w", err)
	}
	staged := false
	for _, s := range status {
		if isStaged(s.Staging) {
			staged = true
			break
		}
	}
	if !staged {
		return "", ErrNothingToCommit
	}

	when := opts.When
	if when.IsZero() {
		when = time.Now()
	}
	msg := opts.Message
	if msg == "" {
		msg = CommitMessage(when.UTC().Format(render.TimestampLayout))
	}
	hash, err := w.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: opts.AuthorName, Email: opts.AuthorEmail, When: when},
	})
	if err != nil {
		return "", fmt.Errorf("data: git commit: %w", err)
	}
	return hash.String(), nil
}

func isStaged(code git.StatusCode) bool {
	return code != git.Unmodified && code != git.Untracked
}
