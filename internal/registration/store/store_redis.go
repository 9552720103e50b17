package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"regform/internal/registration/models"
	"regform/pkg/email"
	"regform/pkg/platform/sentinel"
)

// DefaultRedisPrefix namespaces the keys written by RedisStore.
const DefaultRedisPrefix = "regform:"

// RedisStore keeps registrations as a JSON list under one key, with a set
// of normalised e-mails guarding uniqueness.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedis constructs a Redis-backed registration store. The client
// lifecycle is managed by the caller.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) usersKey() string  { return s.prefix + "users" }
func (s *RedisStore) emailsKey() string { return s.prefix + "emails" }

// Create claims the e-mail with SADD, then appends the record. The claim is
// released if the append fails.
func (s *RedisStore) Create(ctx context.Context, reg *models.Registration) error {
	key := email.Normalize(reg.Email)
	added, err := s.client.SAdd(ctx, s.emailsKey(), key).Result()
	if err != nil {
		return wrapErr("claim registration email", err)
	}
	if added == 0 {
		return conflict("create registration", reg.Email)
	}

	rec := *reg
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.client.SRem(context.WithoutCancel(ctx), s.emailsKey(), key)
		return fmt.Errorf("marshal registration: %w", err)
	}
	if err := s.client.RPush(ctx, s.usersKey(), payload).Err(); err != nil {
		s.client.SRem(context.WithoutCancel(ctx), s.emailsKey(), key)
		return wrapErr("append registration", err)
	}
	reg.ID = rec.ID
	return nil
}

// List decodes every stored record, oldest first.
func (s *RedisStore) List(ctx context.Context) ([]models.Registration, error) {
	raw, err := s.client.LRange(ctx, s.usersKey(), 0, -1).Result()
	if err != nil {
		return nil, wrapErr("list registrations", err)
	}
	out := make([]models.Registration, 0, len(raw))
	for _, item := range raw {
		var reg models.Registration
		if err := json.Unmarshal([]byte(item), &reg); err != nil {
			return nil, fmt.Errorf("decode registration: %w: %w", sentinel.ErrMalformed, err)
		}
		out = append(out, reg)
	}
	return out, nil
}
