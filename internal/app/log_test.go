package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPDHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&pdHandler{w: &buf, opID: "20190302120000"})

	logger.Info("unit transaction started", "base_name", "FastFoto_0007", "members", 2)

	line := strings.TrimSuffix(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		t.Fatalf("fields = %d (%q), want 6", len(fields), line)
	}
	if !strings.HasSuffix(fields[0], "Z") {
		t.Errorf("timestamp %q not UTC-suffixed", fields[0])
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q", fields[1])
	}
	if fields[2] != "20190302120000" {
		t.Errorf("opID = %q", fields[2])
	}
	if fields[3] != "unit transaction started" {
		t.Errorf("message = %q", fields[3])
	}
	if fields[4] != "base_name=FastFoto_0007" || fields[5] != "members=2" {
		t.Errorf("attrs = %q %q", fields[4], fields[5])
	}
}

func TestPDHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&pdHandler{w: &buf, opID: "op"}).With("operation", "correct")

	logger.Warn("unit transaction rolled back", "reason", "mutation_fatal")

	line := buf.String()
	if !strings.Contains(line, "\tWARN\t") {
		t.Errorf("level missing: %q", line)
	}
	// Pre-set attrs come before per-record attrs.
	opIdx := strings.Index(line, "operation=correct")
	reasonIdx := strings.Index(line, "reason=mutation_fatal")
	if opIdx == -1 || reasonIdx == -1 || opIdx > reasonIdx {
		t.Errorf("attr ordering wrong: %q", line)
	}
}
