package tmux

import "testing"

func TestParseWindowList(t *testing.T) {
	out := "0:shell:0\n1:orchestrator-orc:1\n2:dev-dev1:0\n"
	windows := parseWindowList(out)
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if windows[1].Index != 1 || windows[1].Name != "orchestrator-orc" || !windows[1].Active {
		t.Errorf("unexpected window: %+v", windows[1])
	}
	if windows[2].Active {
		t.Error("window 2 should not be active")
	}
}

func TestParseWindowListSkipsMalformedLines(t *testing.T) {
	out := "garbage\n1:ok:0\nx:bad:1\n"
	windows := parseWindowList(out)
	if len(windows) != 1 || windows[0].Name != "ok" {
		t.Errorf("got %+v, want single 'ok' window", windows)
	}
}

func TestEscapeQuotes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`plain text`, `plain text`},
		{`say "hello"`, `say \"hello\"`},
		{`back\slash`, `back\\slash`},
		{`mixed "a\b"`, `mixed \"a\\b\"`},
	}
	for _, c := range cases {
		if got := escapeQuotes(c.in); got != c.want {
			t.Errorf("escapeQuotes(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWaitForTextTimesOutWithoutError(t *testing.T) {
	// No tmux session named like this should exist; the call must give up
	// and return false rather than surfacing the capture failure.
	if WaitForText("no-such-session-xyz", 0, "never", 0) {
		t.Error("expected false on timeout")
	}
}
