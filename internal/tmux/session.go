package tmux

import (
	"fmt"
	"os/exec"
	"strings"
)

// HasTmux reports whether the tmux binary is available on PATH. Checked once
// before any deployment; a missing binary is fatal for the caller.
func HasTmux() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

func SessionExists(name string) bool {
	err := exec.Command("tmux", "has-session", "-t", name).Run()
	return err == nil
}

func CreateSession(name, workdir string) error {
	cmd := exec.Command("tmux", "new-session", "-d", "-s", name, "-c", workdir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("create tmux session %s: %s (%w)", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func KillSession(name string) error {
	if err := exec.Command("tmux", "kill-session", "-t", name).Run(); err != nil {
		return fmt.Errorf("kill tmux session %s: %w", name, err)
	}
	return nil
}

// target formats a window address as session:index.
func target(session string, window int) string {
	return fmt.Sprintf("%s:%d", session, window)
}
