// Package session persists game sessions, player pointers and room invites in
// a TTL'd key-value store. Callers serialize mutations per session id.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultRoomTTL    = 10 * time.Minute
)

// Store is the typed view over a KeyValue.
type Store struct {
	kv KeyValue
}

func NewStore(kv KeyValue) *Store {
	return &Store{kv: kv}
}

func keySession(id string) string       { return "game:" + id }
func keyPointer(playerID string) string { return "player:" + playerID + ":game" }
func keyRoom(code string) string        { return "room:" + strings.ToUpper(code) }

func ttlOr(ttl, def time.Duration) time.Duration {
	if ttl <= 0 {
		return def
	}
	return ttl
}

func (s *Store) CreateSession(ctx context.Context, sess *GameSession, ttl time.Duration) error {
	return s.PutSession(ctx, sess.ID, sess, ttl)
}

// GetSession returns ErrNotFound for absent, expired or unreadable sessions.
// Unreadable ones also match ErrCorrupt.
func (s *Store) GetSession(ctx context.Context, id string) (*GameSession, error) {
	raw, err := s.kv.Get(ctx, keySession(id))
	if err != nil {
		return nil, err
	}
	sess, err := decodeSession(raw)
	if err != nil {
		obslog.L().Warn("session_decode_failed", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("session %s: %w: %w", id, ErrNotFound, err)
	}
	return sess, nil
}

// PutSession overwrites the whole session.
func (s *Store) PutSession(ctx context.Context, id string, sess *GameSession, ttl time.Duration) error {
	if sess != nil && sess.ID != id {
		return fmt.Errorf("%w: id mismatch %q != %q", ErrCorrupt, sess.ID, id)
	}
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keySession(id), raw, ttlOr(ttl, DefaultSessionTTL))
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, keySession(id))
}

func (s *Store) SetPlayerPointer(ctx context.Context, playerID, sessionID string, ttl time.Duration) error {
	if playerID == BotPlayerID {
		return nil
	}
	return s.kv.Set(ctx, keyPointer(playerID), sessionID, ttlOr(ttl, DefaultSessionTTL))
}

func (s *Store) GetPlayerPointer(ctx context.Context, playerID string) (string, error) {
	return s.kv.Get(ctx, keyPointer(playerID))
}

func (s *Store) DeletePlayerPointer(ctx context.Context, playerID string) error {
	return s.kv.Delete(ctx, keyPointer(playerID))
}

func (s *Store) CreateRoomInvite(ctx context.Context, code, creatorID string, ttl time.Duration) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("empty room code")
	}
	return s.kv.Set(ctx, keyRoom(code), creatorID, ttlOr(ttl, DefaultRoomTTL))
}

// GetRoomInvite returns the creator of a live invite without consuming it.
func (s *Store) GetRoomInvite(ctx context.Context, code string) (string, error) {
	return s.kv.Get(ctx, keyRoom(strings.TrimSpace(code)))
}

// ConsumeRoomInvite reads and deletes the invite in one step.
func (s *Store) ConsumeRoomInvite(ctx context.Context, code string) (string, error) {
	return s.kv.GetDel(ctx, keyRoom(strings.TrimSpace(code)))
}

func (s *Store) Ping(ctx context.Context) error { return s.kv.Ping(ctx) }

func (s *Store) Close() error { return s.kv.Close() }

// NewRoomCode returns 6 upper-case alphanumerics.
func NewRoomCode() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
