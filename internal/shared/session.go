package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates a missing or expired session token.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager issues opaque API tokens backed by Redis.
type SessionManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type sessionPayload struct {
	UserID   int64  `json:"user_id"`
	OutletID int64  `json:"outlet_id"`
	Role     string `json:"role"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, prefix string, ttl time.Duration) *SessionManager {
	if prefix == "" {
		prefix = "lokapos_session"
	}
	return &SessionManager{client: client, prefix: prefix, ttl: ttl}
}

// Create stores a new session and returns its token.
func (sm *SessionManager) Create(ctx context.Context, actor Actor) (string, error) {
	if sm == nil || sm.client == nil {
		return "", errors.New("session manager not initialised")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	payload, err := json.Marshal(sessionPayload{UserID: actor.UserID, OutletID: actor.OutletID, Role: actor.Role})
	if err != nil {
		return "", err
	}
	if err := sm.client.Set(ctx, sm.redisKey(token), payload, sm.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Load resolves a token into the actor it was issued for.
func (sm *SessionManager) Load(ctx context.Context, token string) (Actor, error) {
	if sm == nil || sm.client == nil {
		return Actor{}, errors.New("session manager not initialised")
	}
	if token == "" {
		return Actor{}, ErrSessionNotFound
	}
	raw, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Actor{}, ErrSessionNotFound
		}
		return Actor{}, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Actor{}, err
	}
	return Actor{UserID: stored.UserID, OutletID: stored.OutletID, Role: stored.Role}, nil
}

// Destroy removes the session for token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if sm == nil || sm.client == nil {
		return nil
	}
	if token == "" {
		return nil
	}
	return sm.client.Del(ctx, sm.redisKey(token)).Err()
}

func (sm *SessionManager) redisKey(token string) string {
	return fmt.Sprintf("%s:%s", sm.prefix, token)
}
