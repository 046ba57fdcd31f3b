package utils

import (
	"fmt"
	"testing"
)

func TestLogWriter(t *testing.T) {
	var lines []string
	w := NewLogWriter(func(args ...interface{}) {
		lines = append(lines, fmt.Sprint(args...))
	})

	n, err := w.Write([]byte("http: connection reset"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if n != len("http: connection reset") {
		t.Errorf("expected the full write to be reported, got %d", n)
	}
	if len(lines) != 1 || lines[0] != "http: connection reset" {
		t.Errorf("unexpected logged lines: %v", lines)
	}
}
