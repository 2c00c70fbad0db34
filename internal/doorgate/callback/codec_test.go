package callback

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret", time.Now())
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCraftVerify_RoundTrip(t *testing.T) {
	c := testCodec(t)

	tests := []struct {
		door, user string
		at         time.Time
	}{
		{"front", "U123ABC", time.UnixMilli(1700000000123)},
		{"back-door", "W0", time.UnixMilli(0)},
		{"Lab_2", "U9", time.UnixMilli(4102444800000)},
	}

	for _, tt := range tests {
		token, err := c.Craft(tt.door, tt.user, tt.at)
		if err != nil {
			t.Fatalf("Craft(%q, %q): %v", tt.door, tt.user, err)
		}
		if !strings.HasPrefix(token, "v1:"+tt.door+":"+tt.user+":") {
			t.Errorf("unexpected token layout: %q", token)
		}

		claims, err := c.Verify(token)
		if err != nil {
			t.Fatalf("Verify(%q): %v", token, err)
		}
		if claims.DoorID != tt.door || claims.UserID != tt.user || !claims.IssuedAt.Equal(tt.at) {
			t.Errorf("claims = %+v, want %s/%s/%v", claims, tt.door, tt.user, tt.at)
		}
	}
}

func TestVerify_AnySingleCharacterMutationFails(t *testing.T) {
	c := testCodec(t)
	token, err := c.Craft("front", "U123", time.UnixMilli(1700000000000))
	if err != nil {
		t.Fatalf("Craft: %v", err)
	}

	for i := 0; i < len(token); i++ {
		replacement := byte('a')
		if token[i] == 'a' {
			replacement = 'b'
		}
		mutated := token[:i] + string(replacement) + token[i+1:]
		if _, err := c.Verify(mutated); !errors.Is(err, ErrInvalid) {
			t.Errorf("mutation at %d (%q) verified, err = %v", i, mutated, err)
		}
	}
}

func TestVerify_MalformedTokens(t *testing.T) {
	c := testCodec(t)
	good, _ := c.Craft("front", "U1", time.UnixMilli(1))
	sig := good[strings.LastIndex(good, ":")+1:]

	for _, token := range []string{
		"",
		"v1",
		"v1:front:U1:1",
		"v2:front:U1:1:" + sig,
		"v1:front:U1:1:" + sig + ":extra",
		"v1::U1:1:" + sig,
		"v1:front:U1:notanumber:" + sig,
	} {
		if _, err := c.Verify(token); !errors.Is(err, ErrInvalid) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalid", token, err)
		}
	}
}

func TestVerify_TokenFromPreviousProcessRejected(t *testing.T) {
	before := testCodec(t)
	after := testCodec(t)

	token, _ := before.Craft("front", "U1", time.Now())
	if _, err := after.Verify(token); !errors.Is(err, ErrInvalid) {
		t.Errorf("token survived a key rotation, err = %v", err)
	}
}

func TestCraft_RejectsColonFields(t *testing.T) {
	c := testCodec(t)
	if _, err := c.Craft("front:2", "U1", time.Now()); !errors.Is(err, ErrBadField) {
		t.Errorf("err = %v, want ErrBadField", err)
	}
	if _, err := c.Craft("front", "", time.Now()); !errors.Is(err, ErrBadField) {
		t.Errorf("err = %v, want ErrBadField", err)
	}
}

func TestNewCodecWithKey_Deterministic(t *testing.T) {
	key := make([]byte, 32)
	a, err := NewCodecWithKey(key)
	if err != nil {
		t.Fatalf("NewCodecWithKey: %v", err)
	}
	b, _ := NewCodecWithKey(key)

	ta, _ := a.Craft("front", "U1", time.UnixMilli(42))
	tb, _ := b.Craft("front", "U1", time.UnixMilli(42))
	if ta != tb {
		t.Errorf("same key produced different tokens: %q vs %q", ta, tb)
	}

	if _, err := NewCodecWithKey(key[:16]); err == nil {
		t.Error("expected error for short key")
	}
}
