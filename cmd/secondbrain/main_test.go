package main

import (
	"bytes"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KB_API_KEY", "test-key")
	t.Setenv("KB_DB_TASKS", "tasks-db")
	t.Setenv("KB_DB_PEOPLE", "people-db")
	t.Setenv("KB_DB_PLACES", "places-db")
	t.Setenv("KB_DB_PROJECTS", "projects-db")
	t.Setenv("KB_DB_INBOX", "inbox-db")
	t.Setenv("KB_DB_PATTERNS", "patterns-db")
	t.Setenv("KB_DB_LOG", "log-db")
	t.Setenv("USER_TIMEZONE", "UTC")
	t.Setenv("DATA_DIR", filepath.Join(t.TempDir(), "data"))
}

func TestNewRootCmd_RegistersEverySubcommand(t *testing.T) {
	root := newRootCmd()
	want := []string{"run", "check", "briefing", "nudge", "drain-queue"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q to be registered, got err=%v", name, err)
		}
	}
}

func TestCheckCmd_NoKBBaseURL_SucceedsWithoutNetworkCall(t *testing.T) {
	setRequiredEnv(t)

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"check"})

	if err := root.Execute(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.String() != "ok\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestDrainQueueCmd_EmptyQueueSucceeds(t *testing.T) {
	setRequiredEnv(t)

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"drain-queue"})

	if err := root.Execute(); err != nil {
		t.Fatalf("drain-queue: %v", err)
	}
	if out.String() != "processed=0 retained=0 dropped=0 skipped=0\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestNudgeCmd_NoTransportConfigured_Fails(t *testing.T) {
	setRequiredEnv(t)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"nudge"})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected an error when no transport is configured")
	}
}
