package main

import (
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = "1.2.3-test", "abc123"
	defer func() { Version, GitCommit = origVersion, origCommit }()

	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "Quotaguard 1.2.3-test") {
		t.Errorf("expected version line, got %q", out)
	}
	if !strings.Contains(out, "Git Commit: abc123") {
		t.Errorf("expected commit line, got %q", out)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "usage", "call", "validate", "version", "completion"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected command %q to be registered", name)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := executeCommand(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if !strings.Contains(out, "quotaguard") {
		t.Error("expected bash completion script for quotaguard")
	}
}
