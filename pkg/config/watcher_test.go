package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWatcher_EmptyPath(t *testing.T) {
	if _, err := NewWatcher("", time.Millisecond, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	reset()
	t.Cleanup(reset)

	path := writeConfig(t, minimalConfig)

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()

	changes := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Watch(ctx, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := `
services:
  face:
    per_minute: 99
    per_month: 30000
storage:
  backend: memory
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Services["face"].PerMinute != 99 {
			t.Errorf("expected per_minute 99, got %d", cfg.Services["face"].PerMinute)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean exit, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	reset()
	t.Cleanup(reset)

	path := writeConfig(t, minimalConfig)

	w, err := NewWatcher(path, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx, func(*Config) { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	if err := os.WriteFile(other, []byte("x: 1"), 0644); err != nil {
		t.Fatalf("failed to write other file: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no reloads, got %d", n)
	}
}

func TestWatcher_InvalidFileKeepsConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	path := writeConfig(t, minimalConfig)
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	before := GetConfig()

	w, err := NewWatcher(path, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx, func(*Config) { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("services: {}"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no change callbacks, got %d", n)
	}
	if GetConfig() != before {
		t.Error("expected previous config retained")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(writeConfig(t, minimalConfig), time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 callback, got %d", n)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(120 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no callbacks after stop, got %d", n)
	}
}
