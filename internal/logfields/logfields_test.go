package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "abc123", RunID("abc123")},
		{"Source", KeySource, "pkg/util.py", Source("pkg/util.py")},
		{"Status", KeyStatus, "generated", Status("generated")},
		{"Tool", KeyTool, "pyreverse", Tool("pyreverse")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestDurationAttr(t *testing.T) {
	a := Duration(3 * time.Second)
	if a.Key != KeyDuration {
		t.Fatalf("expected key %s, got %s", KeyDuration, a.Key)
	}
	if a.Value.Duration() != 3*time.Second {
		t.Fatalf("expected 3s, got %v", a.Value.Duration())
	}
}
