package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

func buildKey(method, path, actorID, requestID string) string {
	return "idemp:pricing:" + strings.ToLower(method) + ":" + path + ":" + actorID + ":" + requestID
}

var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-5][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

// validReqID accepts a uuid or a bare 32-hex id, case-insensitively.
func validReqID(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	return reUUID.MatchString(id) || reHex32.MatchString(id)
}

// parseAxRequestAt accepts epoch seconds, epoch milliseconds, or
// RFC3339/RFC3339Nano with an explicit zone. Naive local timestamps
// without a timezone are rejected.
func parseAxRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing Ax-Request-At")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 { // ms
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New("Ax-Request-At must be epoch (s/ms) or RFC3339 with timezone")
}

// idempStore keeps the in-progress lock and the stored final response for a
// request key in redis.
type idempStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// Begin claims the key with an in-progress entry. Returns false when the key
// already exists (a retry or a concurrent duplicate).
func (s idempStore) Begin(ctx context.Context, key string, entry idempEntry) (bool, error) {
	payload, _ := json.Marshal(entry)
	return s.rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

func (s idempStore) Load(ctx context.Context, key string) (idempEntry, error) {
	var e idempEntry
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	_ = json.Unmarshal(v, &e)
	return e, nil
}

// Finish replaces the lock with the recorded response so retries can replay
// it for the configured TTL.
func (s idempStore) Finish(ctx context.Context, key string, entry idempEntry) error {
	payload, _ := json.Marshal(entry)
	return s.rdb.Set(ctx, key, payload, s.ttl).Err()
}
