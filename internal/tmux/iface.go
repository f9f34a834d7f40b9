package tmux

import "time"

// TmuxOps abstracts tmux session/window operations for testing.
type TmuxOps interface {
	HasTmux() bool
	SessionExists(name string) bool
	CreateSession(name, workdir string) error
	KillSession(name string) error
	CreateWindow(session string, index int, name, workdir string, initialCommand string) error
	RenameWindow(session string, window int, name string) error
	KillWindow(session string, window int) error
	ListWindows(session string) ([]Window, error)
	SendKeys(session string, window int, text string) error
	SendAgentMessage(session string, window int, text string) error
	CaptureWindowContent(session string, window int, lineCount int) (string, error)
	WaitForWindow(session, name string, timeout time.Duration) bool
	WaitForText(session string, window int, pattern string, timeout time.Duration) bool
}

// RealTmux delegates to the package-level functions.
type RealTmux struct{}

func (RealTmux) HasTmux() bool {
	return HasTmux()
}

func (RealTmux) SessionExists(name string) bool {
	return SessionExists(name)
}

func (RealTmux) CreateSession(name, workdir string) error {
	return CreateSession(name, workdir)
}

func (RealTmux) KillSession(name string) error {
	return KillSession(name)
}

func (RealTmux) CreateWindow(session string, index int, name, workdir string, initialCommand string) error {
	return CreateWindow(session, index, name, workdir, initialCommand)
}

func (RealTmux) RenameWindow(session string, window int, name string) error {
	return RenameWindow(session, window, name)
}

func (RealTmux) KillWindow(session string, window int) error {
	return KillWindow(session, window)
}

func (RealTmux) ListWindows(session string) ([]Window, error) {
	return ListWindows(session)
}

func (RealTmux) SendKeys(session string, window int, text string) error {
	return SendKeys(session, window, text)
}

func (RealTmux) SendAgentMessage(session string, window int, text string) error {
	return SendAgentMessage(session, window, text)
}

func (RealTmux) CaptureWindowContent(session string, window int, lineCount int) (string, error) {
	return CaptureWindowContent(session, window, lineCount)
}

func (RealTmux) WaitForWindow(session, name string, timeout time.Duration) bool {
	return WaitForWindow(session, name, timeout)
}

func (RealTmux) WaitForText(session string, window int, pattern string, timeout time.Duration) bool {
	return WaitForText(session, window, pattern, timeout)
}
