package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"orc/pkg/protocol"
	"orc/pkg/term"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSendAppendsCommandToDropBox(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORC_DIR", dir)

	out, err := runCommand(t, "send", "alice", "please review the PR", "--title", "review", "--priority", "high")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "queued message for alice") {
		t.Errorf("output = %q", out)
	}

	transcripts := term.NewFileTranscripts(filepath.Join(dir, protocol.TranscriptsDir))
	entries, _, err := transcripts.ReadNewEntries(protocol.ControlWorkerID, 0)
	if err != nil {
		t.Fatalf("ReadNewEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %v, want one queued tag", entries)
	}

	cmds := protocol.ExtractCommands(entries[0])
	if len(cmds) != 1 || cmds[0].Type != protocol.CmdSendMessage {
		t.Fatalf("extracted = %+v, want one send_message", cmds)
	}
	send := cmds[0].Send
	if send.From != protocol.ControlWorkerID || send.To != "alice" {
		t.Errorf("from/to = %q/%q", send.From, send.To)
	}
	if send.Title != "review" || send.Priority != protocol.PriorityHigh {
		t.Errorf("title/priority = %q/%q", send.Title, send.Priority)
	}
	if send.Body != "please review the PR" {
		t.Errorf("body = %q", send.Body)
	}
}

func TestSendBroadcastTarget(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORC_DIR", dir)

	if _, err := runCommand(t, "send", "*", "standup in five"); err != nil {
		t.Fatalf("send: %v", err)
	}

	transcripts := term.NewFileTranscripts(filepath.Join(dir, protocol.TranscriptsDir))
	entries, _, err := transcripts.ReadNewEntries(protocol.ControlWorkerID, 0)
	if err != nil {
		t.Fatalf("ReadNewEntries: %v", err)
	}
	cmds := protocol.ExtractCommands(entries[0])
	if len(cmds) != 1 || cmds[0].Send.To != protocol.Broadcast {
		t.Fatalf("extracted = %+v, want broadcast recipient", cmds)
	}
}
