package readmodel

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/austere-albatross/eventstore/organization"
)

// DefaultRedisKey is the set holding organization names
const DefaultRedisKey = "austere:organization:names"

// NewRedis constructs a redis backed name read model using a single set
func NewRedis(rdb redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}

	return &Redis{rdb: rdb, key: key}
}

// Redis stores organization names in a redis set
type Redis struct {
	rdb redis.UniversalClient
	key string
}

var _ organization.NameReadModel = (*Redis)(nil)

// NameExists reports whether the name is a member of the set
func (r *Redis) NameExists(ctx context.Context, name string) (bool, error) {
	return r.rdb.SIsMember(ctx, r.key, name).Result()
}

// AddName adds the name to the set. SADD is atomic, so of two concurrent
// additions of the same name exactly one gets organization.ErrDuplicateName.
func (r *Redis) AddName(ctx context.Context, name string) error {
	added, err := r.rdb.SAdd(ctx, r.key, name).Result()
	if err != nil {
		return err
	}

	if added == 0 {
		return fmt.Errorf("%w: %q", organization.ErrDuplicateName, name)
	}

	return nil
}
