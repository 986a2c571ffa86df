package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "objdetect" {
			t.Errorf("expected use 'objdetect', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
	})

	t.Run("has log-json flag", func(t *testing.T) {
		t.Parallel()
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Fatal("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"upload": false, "history": false, "serve": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage on error", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected usage and errors to be silenced")
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("json output redacts credentials", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		if err := root.PersistentFlags().Set("log-json", "true"); err != nil {
			t.Fatalf("failed to set flag: %v", err)
		}

		var buf bytes.Buffer
		logger := newLogger(root, &buf)
		logger.Warn("credentials fetched", "policy", "eyJleHBpcmF0aW9uIjoi")

		out := buf.String()
		if !strings.HasPrefix(out, "{") {
			t.Errorf("expected JSON output, got %q", out)
		}
		if strings.Contains(out, "eyJleHBpcmF0aW9uIjoi") {
			t.Errorf("expected policy to be redacted, got %q", out)
		}
	})

	t.Run("debug is hidden unless verbose", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		var buf bytes.Buffer
		newLogger(root, &buf).Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected no debug output, got %q", buf.String())
		}

		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatalf("failed to set flag: %v", err)
		}
		newLogger(root, &buf).Debug("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("expected debug output, got %q", buf.String())
		}
	})
}
