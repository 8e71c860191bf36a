package cli

import (
	"bytes"
	"strings"
	"testing"
)

func newTestOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var w, errW bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &w, errW: &errW}, &w, &errW
}

func TestOutputTable(t *testing.T) {
	out, w, _ := newTestOutput(false)

	out.Table([]string{"ID", "STATUS"}, [][]string{{"b-1", "queued"}})

	got := w.String()
	if !strings.Contains(got, "ID") || !strings.Contains(got, "b-1") {
		t.Errorf("table output missing headers or rows: %q", got)
	}
	if strings.Contains(got, "(none)") {
		t.Errorf("non-empty table should not contain placeholder: %q", got)
	}
}

func TestOutputTableEmpty(t *testing.T) {
	out, w, _ := newTestOutput(false)

	out.Table([]string{"ID", "STATUS"}, nil)

	if !strings.Contains(w.String(), "(none)") {
		t.Errorf("empty table should print placeholder, got %q", w.String())
	}
}

func TestOutputPrintJSONMode(t *testing.T) {
	out, w, _ := newTestOutput(true)

	out.Print([]string{"ID"}, [][]string{{"b-1"}}, map[string]string{"id": "b-1"})

	got := w.String()
	if !strings.Contains(got, `"id": "b-1"`) {
		t.Errorf("json mode should print data as JSON, got %q", got)
	}
	if strings.Contains(got, "ID\t") {
		t.Errorf("json mode should not print a table, got %q", got)
	}
}

func TestOutputMessagesGoToStderr(t *testing.T) {
	out, w, errW := newTestOutput(false)

	out.Success("done")
	out.Error("boom")

	if w.Len() != 0 {
		t.Errorf("messages must not pollute stdout: %q", w.String())
	}
	got := errW.String()
	if !strings.Contains(got, "done") || !strings.Contains(got, "Error: boom") {
		t.Errorf("unexpected stderr output: %q", got)
	}
}
