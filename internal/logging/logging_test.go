package logging

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestWithContext_CarriesIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	ctx := context.WithValue(context.Background(), UserIDKey, "user-1")
	ctx = WithTraceID(ctx, "trace-1")

	l.WithContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "user-1") || !strings.Contains(out, "trace-1") {
		t.Errorf("log output missing identifiers: %q", out)
	}
}

func TestEntryFatal(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	exitCode := -1
	l.log.ExitFunc = func(code int) { exitCode = code }

	l.WithError(fmt.Errorf("boom")).Fatal("startup failed")

	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	out := buf.String()
	if !strings.Contains(out, "startup failed") || !strings.Contains(out, "boom") {
		t.Errorf("log output = %q", out)
	}
}
