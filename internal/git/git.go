package git

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned by Commit when the tree became clean
// between the caller's dirty check and the commit itself.
var ErrNothingToCommit = errors.New("nothing to commit")

func IsRepo(path string) bool {
	err := exec.Command("git", "-C", path, "rev-parse", "--git-dir").Run()
	return err == nil
}

func Init(path string) error {
	if out, err := exec.Command("git", "init", path).CombinedOutput(); err != nil {
		return fmt.Errorf("init repository at %s: %s (%w)", path, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// SetIdentity configures the local committer identity for the repository.
func SetIdentity(path, name, email string) error {
	if err := exec.Command("git", "-C", path, "config", "user.name", name).Run(); err != nil {
		return fmt.Errorf("set committer name: %w", err)
	}
	if err := exec.Command("git", "-C", path, "config", "user.email", email).Run(); err != nil {
		return fmt.Errorf("set committer email: %w", err)
	}
	return nil
}

// HasChanges returns true if the working tree at path has any uncommitted
// changes (staged, unstaged, or untracked files).
func HasChanges(path string) bool {
	out, err := exec.Command("git", "-C", path, "status", "--porcelain").Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) > 0
}

func StageAll(path string) error {
	if out, err := exec.Command("git", "-C", path, "add", "-A").CombinedOutput(); err != nil {
		return fmt.Errorf("stage changes: %s (%w)", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func Commit(path, message string) error {
	out, err := exec.Command("git", "-C", path, "commit", "-m", message).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "nothing to commit") {
			return ErrNothingToCommit
		}
		return fmt.Errorf("commit: %s (%w)", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func CurrentBranch(path string) (string, error) {
	out, err := exec.Command("git", "-C", path, "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func BranchExists(path, name string) bool {
	err := exec.Command("git", "-C", path, "rev-parse", "--verify", "refs/heads/"+name).Run()
	return err == nil
}

func CreateBranch(path, name string) error {
	if out, err := exec.Command("git", "-C", path, "branch", name).CombinedOutput(); err != nil {
		return fmt.Errorf("create branch %s: %s (%w)", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func CheckoutBranch(path, name string) error {
	if out, err := exec.Command("git", "-C", path, "checkout", name).CombinedOutput(); err != nil {
		return fmt.Errorf("checkout branch %s: %s (%w)", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func CreateTag(path, name, message string) error {
	if out, err := exec.Command("git", "-C", path, "tag", "-a", name, "-m", message).CombinedOutput(); err != nil {
		return fmt.Errorf("create tag %s: %s (%w)", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// CommitInfo is one entry from Log.
type CommitInfo struct {
	Hash    string
	Subject string
	Author  string
	When    string // relative, e.g. "2 minutes ago"
}

func Log(path string, count int) ([]CommitInfo, error) {
	out, err := exec.Command("git", "-C", path, "log",
		fmt.Sprintf("-%d", count), "--pretty=format:%h|%s|%an|%ar").Output()
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	var commits []CommitInfo
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, CommitInfo{
			Hash:    parts[0],
			Subject: parts[1],
			Author:  parts[2],
			When:    parts[3],
		})
	}
	return commits, nil
}

func HeadCommit(path string) (string, error) {
	out, err := exec.Command("git", "-C", path, "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("get head commit: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func BranchCount(path string) int {
	out, err := exec.Command("git", "-C", path, "branch", "--format=%(refname:short)").Output()
	if err != nil {
		return 0
	}
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "\n"))
}

// InstallHook writes an executable hook script into the repository's hooks
// directory, overwriting any existing hook of the same name.
func InstallHook(path, name, script string) error {
	out, err := exec.Command("git", "-C", path, "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return fmt.Errorf("resolve hooks dir: %w", err)
	}
	hooksDir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(hooksDir) {
		hooksDir = filepath.Join(path, hooksDir)
	}
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("create hooks dir: %w", err)
	}
	hookPath := filepath.Join(hooksDir, name)
	if err := os.WriteFile(hookPath, []byte(script), 0o755); err != nil {
		return fmt.Errorf("write hook %s: %w", name, err)
	}
	return nil
}
