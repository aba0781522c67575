package middleware

import (
	"strings"
	"testing"
	"time"
)

func TestValidReqID(t *testing.T) {
	cases := map[string]bool{
		"5f3a1c9e-2b4d-4a6f-8c1d-9e7b5a3f1c2d": true, // uuid v4
		strings.Repeat("a", 32):                true, // 32-hex
		strings.ToUpper(strings.Repeat("a", 32)): true, // normalized to lower
		"":            false,
		"not-an-id":   false,
		"12345":       false,
	}
	for in, want := range cases {
		if got := validReqID(in); got != want {
			t.Errorf("validReqID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseAxRequestAt(t *testing.T) {
	t.Run("epoch seconds", func(t *testing.T) {
		got, err := parseAxRequestAt("1736123456")
		if err != nil {
			t.Fatal(err)
		}
		if got.Unix() != 1736123456 {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("epoch milliseconds", func(t *testing.T) {
		got, err := parseAxRequestAt("1736123456789")
		if err != nil {
			t.Fatal(err)
		}
		if got.UnixMilli() != 1736123456789 {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("rfc3339 with zone", func(t *testing.T) {
		got, err := parseAxRequestAt("2026-08-30T10:00:00+07:00")
		if err != nil {
			t.Fatal(err)
		}
		want := time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
	t.Run("rejected inputs", func(t *testing.T) {
		for _, bad := range []string{"", "2026-08-30 10:00:00", "yesterday"} {
			if _, err := parseAxRequestAt(bad); err == nil {
				t.Errorf("accepted %q", bad)
			}
		}
	})
}

func TestBuildKey(t *testing.T) {
	actor := strings.Repeat("a", 32)
	key := buildKey("POST", "/portfolios/:portfolio_id/save", actor, "req-1")
	if !strings.HasPrefix(key, "idemp:pricing:post:") {
		t.Fatalf("key = %q", key)
	}
	if !strings.Contains(key, actor) || !strings.Contains(key, "req-1") {
		t.Fatalf("key missing parts: %q", key)
	}
}

func TestBodyHash_Deterministic(t *testing.T) {
	a := bodyHash([]byte(`{"user_name":"amira"}`))
	b := bodyHash([]byte(`{"user_name":"amira"}`))
	c := bodyHash([]byte(`{"user_name":"budi"}`))
	if a != b {
		t.Fatal("same body must hash identically")
	}
	if a == c {
		t.Fatal("different bodies must differ")
	}
	if len(a) != 64 {
		t.Fatalf("hex sha256 length = %d", len(a))
	}
}
