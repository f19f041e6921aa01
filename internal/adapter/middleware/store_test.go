package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, replayStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, replayStore{rdb: rdb, lockTTL: claimTTL, ttl: ttl}
}

func Test_sha256Hex(t *testing.T) {
	sum := sha256.Sum256([]byte("hello world"))
	if got, want := sha256Hex([]byte("hello world")), hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("sha256Hex = %s, want %s", got, want)
	}
}

func Test_replayKey(t *testing.T) {
	got := replayKey("POST", "/api/loans/:loan_id/decision", "banker-1", testKey)
	want := "idemp:creditflow:post:/api/loans/:loan_id/decision:banker-1:" + testKey
	if got != want {
		t.Fatalf("replayKey = %q, want %q", got, want)
	}
}

func Test_validIdemKey(t *testing.T) {
	cases := map[string]bool{
		"3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88": true,  // v4
		"0190d1a2-3b4c-7d5e-8f60-718293a4b5c6": true,  // v7
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c88":     true,  // hex32
		"":                                     false,
		strings.Repeat("A", 32):                false, // uppercase; the middleware lowercases first
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c8":      false, // 31 chars
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c880":    false, // 33 chars
		strings.Repeat("z", 32):                false,
		"3f9a6a1b-3d54-9fbe-8b3a-6b3e8d6b2c88": false, // version 9
	}
	for k, want := range cases {
		if got := validIdemKey(k); got != want {
			t.Errorf("validIdemKey(%q) = %v, want %v", k, got, want)
		}
	}
}

func Test_parseRequestAt(t *testing.T) {
	sec := time.Now().UTC().Unix()
	ms := time.Now().UTC().UnixMilli()
	rfc := time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)

	valid := map[string]time.Time{
		strconv.FormatInt(sec, 10):  time.Unix(sec, 0).UTC(),
		strconv.FormatInt(ms, 10):   time.UnixMilli(ms).UTC(),
		"2025-09-05T10:00:00+07:00": rfc,
		"2025-09-05T03:00:00Z":      rfc,
		"2025-09-05T03:00:00.000Z":  rfc,
	}
	for raw, want := range valid {
		got, err := parseRequestAt(raw)
		if err != nil {
			t.Fatalf("parseRequestAt(%q): %v", raw, err)
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("parseRequestAt(%q) = %v, want %v UTC", raw, got, want)
		}
	}
	for _, raw := range []string{"", "not-a-time", "2025-09-05T10:00:00", "1736123456abc"} {
		if _, err := parseRequestAt(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func Test_replayStore_ClaimGetDrop(t *testing.T) {
	mr, s := newStore(t, time.Minute)
	ctx := context.Background()
	key := replayKey("POST", "/api/loans", "u1", testKey)
	claim := replayEntry{Pending: true, BodyHash: sha256Hex([]byte(`{"a":1}`)), CreatedAt: time.Now().UTC()}

	ok, err := s.claim(ctx, key, claim)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > claimTTL {
		t.Fatalf("claim ttl = %v", ttl)
	}
	if ok, err = s.claim(ctx, key, claim); err != nil || ok {
		t.Fatalf("second claim must lose: ok=%v err=%v", ok, err)
	}

	got, err := s.get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Pending || got.BodyHash != claim.BodyHash {
		t.Fatalf("entry mismatch: %+v", got)
	}

	if err := s.drop(ctx, key); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("key should be gone after drop")
	}
}

func Test_replayStore_Settle(t *testing.T) {
	mr, s := newStore(t, 5*time.Second)
	ctx := context.Background()
	key := replayKey("POST", "/api/loans", "u1", testKey)

	err := s.settle(ctx, key, replayEntry{
		Status:      201,
		ContentType: "application/json",
		Body:        []byte(`{"ok":true}`),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 5*time.Second {
		t.Fatalf("settled ttl = %v", ttl)
	}
	got, err := s.get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Pending || got.Status != 201 || string(got.Body) != `{"ok":true}` {
		t.Fatalf("settled entry mismatch: %+v", got)
	}
}

func Test_replayStore_CorruptEntry(t *testing.T) {
	mr, s := newStore(t, time.Minute)
	if err := mr.Set("k", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.get(context.Background(), "k"); err == nil || !strings.Contains(err.Error(), "decode k") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
