package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// executeCommand runs the root command with args and returns what it wrote
// to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags()
	t.Cleanup(resetFlags)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	cfgFile = "quotaguard.yaml"
	verbose = false
	usageFlags.service = ""
	usageFlags.history = false
	usageFlags.summary = false
	usageFlags.from = ""
	usageFlags.to = ""
	usageFlags.format = "text"
	callFlags.body = ""
	callFlags.count = 1
	callFlags.force = false
	runFlags.listenAddress = ""
	runFlags.logLevel = ""
	runFlags.dryRun = false
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quotaguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
