package git

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestRepo creates a git repo in a temp dir with an initial empty commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init", dir},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
		{"git", "-C", dir, "commit", "--allow-empty", "-m", "initial commit"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Env = append(os.Environ(), "GIT_CONFIG_GLOBAL=/dev/null")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("setup %v: %s (%v)", args, out, err)
		}
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHasChanges(t *testing.T) {
	repo := setupTestRepo(t)

	if HasChanges(repo) {
		t.Error("fresh repo should have no changes")
	}

	writeFile(t, repo, "a.txt", "hello")
	if !HasChanges(repo) {
		t.Error("untracked file should count as changes")
	}
}

func TestStageAllAndCommit(t *testing.T) {
	repo := setupTestRepo(t)
	writeFile(t, repo, "a.txt", "hello")

	if err := StageAll(repo); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	if err := Commit(repo, "add a.txt"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if HasChanges(repo) {
		t.Error("tree should be clean after commit")
	}

	commits, err := Log(repo, 5)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].Subject != "add a.txt" {
		t.Errorf("got subject %q", commits[0].Subject)
	}
	if commits[0].Author != "Test" {
		t.Errorf("got author %q", commits[0].Author)
	}
}

func TestCommitNothingToCommit(t *testing.T) {
	repo := setupTestRepo(t)

	err := Commit(repo, "empty")
	if !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("got %v, want ErrNothingToCommit", err)
	}
}

func TestBranchHelpers(t *testing.T) {
	repo := setupTestRepo(t)

	if BranchExists(repo, "feature/x") {
		t.Error("branch should not exist yet")
	}
	if err := CreateBranch(repo, "feature/x"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if !BranchExists(repo, "feature/x") {
		t.Error("branch should exist after creation")
	}
	if err := CheckoutBranch(repo, "feature/x"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	branch, err := CurrentBranch(repo)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature/x" {
		t.Errorf("got branch %q", branch)
	}
	if got := BranchCount(repo); got != 2 {
		t.Errorf("got %d branches, want 2", got)
	}
}

func TestCreateTag(t *testing.T) {
	repo := setupTestRepo(t)

	if err := CreateTag(repo, "v0.1.0", "stable"); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	out, err := exec.Command("git", "-C", repo, "tag", "-l").Output()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "v0.1.0") {
		t.Errorf("tag not listed: %s", out)
	}
}

func TestSetIdentity(t *testing.T) {
	repo := setupTestRepo(t)

	if err := SetIdentity(repo, "Orchestrator", "orc@example.com"); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	out, err := exec.Command("git", "-C", repo, "config", "user.name").Output()
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "Orchestrator" {
		t.Errorf("got name %q", out)
	}
}

func TestInstallHook(t *testing.T) {
	repo := setupTestRepo(t)

	script := "#!/bin/sh\nexit 0\n"
	if err := InstallHook(repo, "pre-commit", script); err != nil {
		t.Fatalf("InstallHook: %v", err)
	}

	hookPath := filepath.Join(repo, ".git", "hooks", "pre-commit")
	info, err := os.Stat(hookPath)
	if err != nil {
		t.Fatalf("hook not written: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("hook should be executable")
	}
}

func TestInitAndIsRepo(t *testing.T) {
	dir := t.TempDir()

	if IsRepo(dir) {
		t.Error("empty dir should not be a repo")
	}
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !IsRepo(dir) {
		t.Error("dir should be a repo after init")
	}
}
