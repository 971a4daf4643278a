package main

import (
	"strings"
	"testing"

	"mercator-hq/quotaguard/pkg/cli"
)

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, `
services:
  ocr:
    per_minute: 5
    per_month: 1000
    remote:
      base_url: "https://ocr.example.com/v1"
  face:
    per_minute: 20
    per_month: 30000
storage:
  backend: memory
flush:
  schedule: "@hourly"
`)

	out, err := executeCommand(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "✓ Configuration valid") {
		t.Errorf("expected success line, got %q", out)
	}

	faceAt := strings.Index(out, "face: 20/min, 30000/month, 3 attempts, 30s cooldown, no remote endpoint")
	ocrAt := strings.Index(out, "ocr: 5/min, 1000/month")
	if faceAt < 0 || ocrAt < 0 || faceAt > ocrAt {
		t.Errorf("expected sorted service lines, got %q", out)
	}
	if !strings.Contains(out, "flush: @hourly (on shutdown: true)") {
		t.Errorf("expected flush line, got %q", out)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeConfig(t, `
services:
  face:
    per_minute: 0
    per_month: 100
storage:
  backend: cassandra
`)

	_, err := executeCommand(t, "validate", "--config", path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if code := cli.ExitCode(err); code != cli.ExitConfigError {
		t.Errorf("expected exit code %d, got %d", cli.ExitConfigError, code)
	}
	if got := len(cli.ConfigErrors(err)); got != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", got, err)
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, err := executeCommand(t, "validate", "--config", "/does/not/exist.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if code := cli.ExitCode(err); code != cli.ExitFailure {
		t.Errorf("expected exit code %d, got %d", cli.ExitFailure, code)
	}
}
