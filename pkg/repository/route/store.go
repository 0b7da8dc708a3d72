// Package route persists the current route and the route history in Redis.
//
// All keys live under one storage name:
//
//	<name>:current        route state JSON
//	<name>:routes         hash id -> route JSON
//	<name>:routes:index   sorted set of ids scored by route date (unix ms)
package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailru/easyjson"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"routedog/pkg/config"
	"routedog/pkg/models"
)

var (
	ErrNotFound  = errors.New("route not found")
	ErrMissingID = errors.New("route id is empty")
)

type Store struct {
	client *redis.Client
	name   string
}

// Open connects to the Redis server at cfg.URL and checks it answers.
func Open(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, cfg.StorageName), nil
}

// New wraps an existing client. The store owns it and closes it in Close.
func New(client *redis.Client, name string) *Store {
	return &Store{client: client, name: name}
}

func (s *Store) currentKey() string { return s.name + ":current" }
func (s *Store) routesKey() string  { return s.name + ":routes" }
func (s *Store) indexKey() string   { return s.name + ":routes:index" }

// LoadCurrent returns the saved route state, or an empty one.
func (s *Store) LoadCurrent(ctx context.Context) (models.RouteState, error) {
	state := models.RouteState{Addresses: []models.Address{}}

	raw, err := s.client.Get(ctx, s.currentKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("load current route: %w", err)
	}
	if err := easyjson.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode current route: %w", err)
	}
	if state.Addresses == nil {
		state.Addresses = []models.Address{}
	}
	return state, nil
}

func (s *Store) SaveCurrent(ctx context.Context, state models.RouteState) error {
	raw, err := easyjson.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode current route: %w", err)
	}
	if err := s.client.Set(ctx, s.currentKey(), raw, 0).Err(); err != nil {
		return fmt.Errorf("save current route: %w", err)
	}
	return nil
}

// SaveRoute inserts or replaces a route in the history.
func (s *Store) SaveRoute(ctx context.Context, r models.Route) error {
	if r.ID == "" {
		return ErrMissingID
	}
	raw, err := easyjson.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode route %q: %w", r.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.routesKey(), r.ID, raw)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(r.Date.UnixMilli()), Member: r.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save route %q: %w", r.ID, err)
	}

	log.Ctx(ctx).Debug().Str("route_id", r.ID).Int("stops", len(r.Addresses)).Msg("route saved")
	return nil
}

// ListRoutes returns the history, newest first.
func (s *Store) ListRoutes(ctx context.Context) ([]models.Route, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list route ids: %w", err)
	}
	out := make([]models.Route, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, s.routesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a body; skip it.
			log.Ctx(ctx).Warn().Str("route_id", ids[i]).Msg("route indexed but missing")
			continue
		}
		var r models.Route
		if err := easyjson.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode route %q: %w", ids[i], err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) GetRoute(ctx context.Context, id string) (models.Route, error) {
	raw, err := s.client.HGet(ctx, s.routesKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Route{}, fmt.Errorf("route %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Route{}, fmt.Errorf("load route %q: %w", id, err)
	}
	var r models.Route
	if err := easyjson.Unmarshal(raw, &r); err != nil {
		return models.Route{}, fmt.Errorf("decode route %q: %w", id, err)
	}
	return r, nil
}

// DeleteRoute removes a route from the history and returns what was removed.
func (s *Store) DeleteRoute(ctx context.Context, id string) (models.Route, error) {
	r, err := s.GetRoute(ctx, id)
	if err != nil {
		return models.Route{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.routesKey(), id)
		p.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return models.Route{}, fmt.Errorf("delete route %q: %w", id, err)
	}
	return r, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
