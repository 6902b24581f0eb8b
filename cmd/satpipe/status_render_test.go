package main

import (
	"strings"
	"testing"

	"satpipe/internal/filestate"
)

func TestFormatStatusLabel(t *testing.T) {
	tests := []struct {
		status filestate.Status
		want   string
	}{
		{filestate.StatusToLoad, "To Load"},
		{filestate.StatusProcessing, "Processing"},
		{filestate.StatusStandard, "Std"},
		{filestate.StatusToDelete, "To Delete"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatStatusLabel(tt.status); got != tt.want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Metadata store", statusError, "connection refused", false)
	if !strings.Contains(line, "Metadata store:") || !strings.Contains(line, "[ERROR] connection refused") {
		t.Fatalf("unexpected line %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("plain line contains color codes: %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Pipelines", statusOK, "", true)
	if !strings.Contains(line, "\x1b[") {
		t.Fatalf("expected color codes in %q", line)
	}
}

func TestTableViewEmpty(t *testing.T) {
	var b strings.Builder
	if err := (tableView{headers: []string{"ID"}}).write(&b); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.String() != "No entries\n" {
		t.Fatalf("unexpected output %q", b.String())
	}
}
