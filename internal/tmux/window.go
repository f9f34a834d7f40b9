package tmux

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// settleDelay is how long to wait between injecting message text and
	// sending Enter. The agent process needs time to register buffered
	// input before submission.
	settleDelay = 500 * time.Millisecond

	// maxCaptureLines bounds how much pane history a single capture returns.
	maxCaptureLines = 200

	// pollInterval is how often WaitForWindow/WaitForText re-check.
	pollInterval = 300 * time.Millisecond
)

func CreateWindow(session string, index int, name, workdir string, initialCommand string) error {
	args := []string{
		"new-window",
		"-t", target(session, index),
		"-n", name,
		"-c", workdir,
	}
	if initialCommand != "" {
		args = append(args, initialCommand)
	}
	cmd := exec.Command("tmux", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("create tmux window %s: %s (%w)", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func RenameWindow(session string, window int, name string) error {
	if err := exec.Command("tmux", "rename-window", "-t", target(session, window), name).Run(); err != nil {
		return fmt.Errorf("rename tmux window %s to %s: %w", target(session, window), name, err)
	}
	return nil
}

func KillWindow(session string, window int) error {
	return exec.Command("tmux", "kill-window", "-t", target(session, window)).Run()
}

// Window is one entry from ListWindows.
type Window struct {
	Index  int
	Name   string
	Active bool
}

func ListWindows(session string) ([]Window, error) {
	out, err := exec.Command("tmux", "list-windows", "-t", session,
		"-F", "#{window_index}:#{window_name}:#{window_active}").Output()
	if err != nil {
		return nil, fmt.Errorf("list tmux windows for %s: %w", session, err)
	}
	return parseWindowList(string(out)), nil
}

func parseWindowList(out string) []Window {
	var windows []Window
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		idx, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		windows = append(windows, Window{
			Index:  idx,
			Name:   parts[1],
			Active: parts[2] == "1",
		})
	}
	return windows
}

// SendKeys injects literal text into a window. Embedded quotes are escaped
// so they survive tmux's own string handling.
func SendKeys(session string, window int, text string) error {
	escaped := escapeQuotes(text)
	cmd := exec.Command("tmux", "send-keys", "-t", target(session, window), "-l", escaped)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("send keys to %s: %s (%w)", target(session, window), strings.TrimSpace(string(out)), err)
	}
	return nil
}

// SendEnter sends a terminal Enter keystroke to a window.
func SendEnter(session string, window int) error {
	if err := exec.Command("tmux", "send-keys", "-t", target(session, window), "Enter").Run(); err != nil {
		return fmt.Errorf("send enter to %s: %w", target(session, window), err)
	}
	return nil
}

// SendAgentMessage delivers a message to an agent process: inject the text,
// wait for it to register in the input buffer, then submit with Enter.
func SendAgentMessage(session string, window int, text string) error {
	if err := SendKeys(session, window, text); err != nil {
		return err
	}
	time.Sleep(settleDelay)
	return SendEnter(session, window)
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// CaptureWindowContent returns the last lineCount lines of visible pane
// output, capped at maxCaptureLines.
func CaptureWindowContent(session string, window int, lineCount int) (string, error) {
	if lineCount <= 0 || lineCount > maxCaptureLines {
		lineCount = maxCaptureLines
	}
	out, err := exec.Command("tmux", "capture-pane",
		"-t", target(session, window),
		"-p", "-S", fmt.Sprintf("-%d", lineCount)).Output()
	if err != nil {
		return "", fmt.Errorf("capture pane %s: %w", target(session, window), err)
	}
	return string(out), nil
}

// WaitForWindow polls until a window with the given name exists in the
// session, returning false (not an error) when the timeout expires.
func WaitForWindow(session, name string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		windows, err := ListWindows(session)
		if err == nil {
			for _, w := range windows {
				if w.Name == name {
					return true
				}
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// WaitForText polls a window's captured content until it contains pattern,
// returning false (not an error) when the timeout expires.
func WaitForText(session string, window int, pattern string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		content, err := CaptureWindowContent(session, window, maxCaptureLines)
		if err == nil && strings.Contains(content, pattern) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
