package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTypedGetters(t *testing.T) {
	t.Setenv("CFG_INT", "12")
	t.Setenv("CFG_BAD_INT", "-3")
	t.Setenv("CFG_DUR", "15s")
	t.Setenv("CFG_SECS", "90")
	t.Setenv("CFG_BOOL", "off")
	t.Setenv("CFG_LIST", " a, ,b ,c")

	if got := Int("CFG_INT", 1); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := Int("CFG_BAD_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := Duration("CFG_DUR", time.Minute); got != 15*time.Second {
		t.Fatalf("expected 15s, got %s", got)
	}
	if got := Duration("CFG_SECS", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	if got := Duration("CFG_MISSING", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if Bool("CFG_BOOL", true) {
		t.Fatal("expected off to be false")
	}
	if !Bool("CFG_MISSING", true) {
		t.Fatal("expected fallback true")
	}
	got := List("CFG_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected [a b c], got %v", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CFG_PORT", "70000")
	if _, err := Port("CFG_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	if p, err := Port("CFG_UNSET_PORT", "8080"); err != nil || p != "8080" {
		t.Fatalf("expected fallback port, got %q %v", p, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CFG_FROM_FILE=file\nCFG_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CFG_PRESET", "process")
	t.Setenv("CFG_FROM_FILE", "")
	os.Unsetenv("CFG_FROM_FILE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("CFG_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("CFG_PRESET"); got != "process" {
		t.Fatalf("expected process env to win, got %q", got)
	}
}
