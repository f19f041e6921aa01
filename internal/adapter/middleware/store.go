package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// replayEntry is what one idempotency key holds in Redis. A pending entry is
// the claim taken before the handler runs; a settled one carries the response.
type replayEntry struct {
	Pending     bool      `json:"pending"`
	Status      int       `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	BodyHash    string    `json:"body_sha256"`
	RequestAtMS int64     `json:"request_at_ms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type replayStore struct {
	rdb     *redis.Client
	lockTTL time.Duration
	ttl     time.Duration
}

// claim takes the key for a new request. false means someone already holds it.
func (s replayStore) claim(ctx context.Context, key string, e replayEntry) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, s.lockTTL).Result()
}

func (s replayStore) get(ctx context.Context, key string) (replayEntry, error) {
	var e replayEntry
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("decode %s: %w", key, err)
	}
	return e, nil
}

// settle replaces the claim with the final response for the store's ttl.
func (s replayStore) settle(ctx context.Context, key string, e replayEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, s.ttl).Err()
}

// drop frees the key so the client can retry.
func (s replayStore) drop(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func replayKey(method, route, actorID, idemKey string) string {
	return strings.Join([]string{"idemp", "creditflow", strings.ToLower(method), route, actorID, idemKey}, ":")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var (
	reKeyUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-7][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reKeyHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

// validIdemKey accepts a lowercase UUID (v1-v7) or 32 lowercase hex chars.
func validIdemKey(k string) bool { return reKeyUUID.MatchString(k) || reKeyHex32.MatchString(k) }

// parseRequestAt reads epoch seconds, epoch milliseconds, or RFC3339 with a
// zone. Timestamps without a zone are rejected.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}
