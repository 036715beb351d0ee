package log

import "testing"

func TestNewLogrusLoggerDefaultsToInfo(t *testing.T) {
	l := newLogrusLogger(ConsoleConfig{Level: "bogus"})
	if l.IsDebugEnabled() {
		t.Fatal("expected debug disabled for unparseable level")
	}
}

func TestGetLoggerReturnsNonNil(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("expected a default logger")
	}
}
