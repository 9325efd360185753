// Package reposource wraps the git CLI for everything the Slot Manager
// needs out of a worktree: cloning, branching, rebasing, pushing.
package reposource

import (
	"context"
	"os/exec"
	"sort"
	"strings"

	"github.com/slotforge/slotforge/internal/slotz"
)

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		exitErr, _ := err.(*exec.ExitError)
		code := -1
		if exitErr != nil {
			code = exitErr.ExitCode()
		}
		return "", slotz.Wrapf(slotz.KindGit, dir, "git %s failed (exit %d): %s",
			strings.Join(args, " "), code, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// Clone clones source (a local path or remote URL) into targetPath.
func Clone(ctx context.Context, source, targetPath string) error {
	_, err := runGit(ctx, "", "clone", source, targetPath)
	return err
}

// Checkout switches repoPath to branch, creating it (off the current
// HEAD) when createNew is true.
func Checkout(ctx context.Context, repoPath, branch string, createNew bool) error {
	if createNew {
		_, err := runGit(ctx, repoPath, "checkout", "-b", branch)
		return err
	}
	_, err := runGit(ctx, repoPath, "checkout", branch)
	return err
}

func Fetch(ctx context.Context, repoPath string) error {
	_, err := runGit(ctx, repoPath, "fetch", "origin")
	return err
}

// Rebase rebases repoPath's current branch onto origin/targetBranch.
func Rebase(ctx context.Context, repoPath, targetBranch string) error {
	_, err := runGit(ctx, repoPath, "rebase", "origin/"+targetBranch)
	return err
}

// Push pushes branch, setting the upstream tracking branch when
// setUpstream is true (first push of a newly created branch).
func Push(ctx context.Context, repoPath, branch string, setUpstream bool) error {
	if setUpstream {
		_, err := runGit(ctx, repoPath, "push", "-u", "origin", branch)
		return err
	}
	_, err := runGit(ctx, repoPath, "push", "origin", branch)
	return err
}

func CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return runGit(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
}

// DefaultBranch resolves the remote's default branch (origin/HEAD),
// used to pick a rebase target when the caller doesn't name one.
func DefaultBranch(ctx context.Context, repoPath string) (string, error) {
	ref, err := runGit(ctx, repoPath, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(ref, "refs/remotes/origin/"), nil
}

// ListBranches returns the deduplicated, sorted set of local and remote
// branch names, with the origin/ prefix and HEAD pseudo-ref stripped.
func ListBranches(ctx context.Context, repoPath string) ([]string, error) {
	output, err := runGit(ctx, repoPath, "branch", "-a", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, line := range strings.Split(output, "\n") {
		b := strings.TrimSpace(line)
		if b == "" {
			continue
		}
		b = strings.TrimPrefix(b, "origin/")
		if b == "HEAD" {
			continue
		}
		seen[b] = struct{}{}
	}

	branches := make([]string, 0, len(seen))
	for b := range seen {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return branches, nil
}

func BranchExists(ctx context.Context, repoPath, branch string) (bool, error) {
	_, err := runGit(ctx, repoPath, "rev-parse", "--verify", branch)
	return err == nil, nil
}
