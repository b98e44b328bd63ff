package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DenyList records revoked token ids and per-user not-before markers.
type DenyList interface {
	// Revoke rejects tokenID until the given time.
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// RevokeUser rejects every credential of userID issued before at.
	RevokeUser(ctx context.Context, userID uuid.UUID, at time.Time) error
	NotBefore(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
}

const defaultKeyPrefix = "navconsole:session"

// RedisDenyList keeps revocations in redis so every replica sees them.
type RedisDenyList struct {
	client redis.Cmdable
	prefix string
	// markerTTL bounds user markers; older credentials have expired anyway.
	markerTTL time.Duration
	now       func() time.Time
}

func NewRedisDenyList(client redis.Cmdable, prefix string, markerTTL time.Duration) *RedisDenyList {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisDenyList{client: client, prefix: prefix, markerTTL: markerTTL, now: time.Now}
}

func (d *RedisDenyList) tokenKey(id string) string {
	return d.prefix + ":revoked:" + id
}

func (d *RedisDenyList) userKey(id uuid.UUID) string {
	return d.prefix + ":nbf:" + id.String()
}

func (d *RedisDenyList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.tokenKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("session: revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenyList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.tokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("session: check token: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDenyList) RevokeUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if err := d.client.Set(ctx, d.userKey(userID), at.Unix(), d.markerTTL).Err(); err != nil {
		return fmt.Errorf("session: revoke user: %w", err)
	}
	return nil
}

func (d *RedisDenyList) NotBefore(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	raw, err := d.client.Get(ctx, d.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("session: read user marker: %w", err)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("session: corrupt user marker %q: %w", raw, err)
	}
	return time.Unix(sec, 0), true, nil
}

type denyEntry struct {
	value     time.Time
	expiresAt time.Time
}

// MemoryDenyList is a single-process DenyList. Expired entries are dropped on read.
type MemoryDenyList struct {
	tokens    sync.Map // token id -> denyEntry
	users     sync.Map // user id -> denyEntry
	markerTTL time.Duration
	now       func() time.Time
}

func NewMemoryDenyList(markerTTL time.Duration) *MemoryDenyList {
	return &MemoryDenyList{markerTTL: markerTTL, now: time.Now}
}

func (d *MemoryDenyList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if !until.After(d.now()) {
		return nil
	}
	d.tokens.Store(tokenID, denyEntry{expiresAt: until})
	return nil
}

func (d *MemoryDenyList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := d.load(&d.tokens, tokenID)
	return ok, nil
}

func (d *MemoryDenyList) RevokeUser(_ context.Context, userID uuid.UUID, at time.Time) error {
	d.users.Store(userID, denyEntry{value: at.Truncate(time.Second), expiresAt: d.now().Add(d.markerTTL)})
	return nil
}

func (d *MemoryDenyList) NotBefore(_ context.Context, userID uuid.UUID) (time.Time, bool, error) {
	e, ok := d.load(&d.users, userID)
	return e.value, ok, nil
}

func (d *MemoryDenyList) load(m *sync.Map, key any) (denyEntry, bool) {
	v, ok := m.Load(key)
	if !ok {
		return denyEntry{}, false
	}
	e := v.(denyEntry)
	if !d.now().Before(e.expiresAt) {
		m.Delete(key)
		return denyEntry{}, false
	}
	return e, true
}
