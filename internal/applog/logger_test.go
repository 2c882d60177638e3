package applog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: LevelWarn}
	l.SetMirror(&buf)

	l.Info("dropped")
	l.Warn("kept", "file", "a.csv")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] kept file=a.csv") {
		t.Errorf("missing warn line: %q", out)
	}
}

func TestLogger_ZeroDiscards(t *testing.T) {
	l := &Logger{}
	if l.Enabled() {
		t.Fatal("zero logger reports enabled")
	}
	l.Error("nothing") // must not panic
}

func TestLogger_OddKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: LevelDebug}
	l.SetMirror(&buf)
	l.Debug("msg", "k", 1, "dangling")
	if !strings.Contains(buf.String(), "k=1 extra=dangling") {
		t.Errorf("got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
