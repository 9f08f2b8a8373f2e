package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateRoomID_IsUUID(t *testing.T) {
	id := GenerateRoomID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid, got %q: %v", id, err)
	}
}

func TestGenerateWorkspaceID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateWorkspaceID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate workspace id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateRequestID_Prefix(t *testing.T) {
	id := GenerateRequestID()
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("expected req_ prefix, got %q", id)
	}
}

func TestTimestamp_ParsesAsRFC3339(t *testing.T) {
	ts := Timestamp()
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t.Fatalf("timestamp %q did not parse: %v", ts, err)
	}
	if time.Since(parsed) > time.Minute {
		t.Fatalf("timestamp %q is not current", ts)
	}
}

func TestParseDurationSafe(t *testing.T) {
	if d := ParseDurationSafe("150ms", time.Second); d != 150*time.Millisecond {
		t.Fatalf("unexpected duration %v", d)
	}
	if d := ParseDurationSafe("garbage", time.Second); d != time.Second {
		t.Fatalf("expected fallback, got %v", d)
	}
}
