package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chessmate/internal/domain"
)

const redisGameTTL = 30 * 24 * time.Hour

// redisStore keeps game records as JSON values and runs the versioned
// update inside a WATCH transaction: the version check and the write
// happen atomically, and a concurrent writer aborts the transaction.
type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis and verifies it with a ping.
func NewRedisStore(redisURL string) (GameStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{rdb: rdb}, nil
}

func gameKey(id string) string     { return "game:" + strings.TrimSpace(id) }
func ownerKey(owner string) string { return "game:index:owner:" + strings.TrimSpace(owner) }

type redisGame struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Status           string     `json:"status"`
	Difficulty       int        `json:"difficulty"`
	TimeControl      string     `json:"time_control"`
	CurrentFEN       string     `json:"current_fen"`
	MovesUCI         []string   `json:"moves_uci"`
	MovesSAN         []string   `json:"moves_san"`
	TimeLeftUserMs   int64      `json:"time_left_user_ms"`
	TimeLeftEngineMs int64      `json:"time_left_engine_ms"`
	TurnStartedAt    *time.Time `json:"turn_started_at,omitempty"`
	Result           *string    `json:"result,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toRedisGame(g *domain.Game) *redisGame {
	rg := &redisGame{
		ID:               g.ID,
		OwnerID:          g.OwnerID,
		Status:           string(g.Status),
		Difficulty:       g.Difficulty,
		TimeControl:      string(g.TimeControl),
		CurrentFEN:       g.CurrentFEN,
		MovesUCI:         append([]string(nil), g.MovesUCI...),
		MovesSAN:         append([]string(nil), g.MovesSAN...),
		TimeLeftUserMs:   g.TimeLeftUserMs,
		TimeLeftEngineMs: g.TimeLeftEngineMs,
		TurnStartedAt:    g.TurnStartedAt,
		Version:          g.Version,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
	if g.Result != nil {
		s := string(*g.Result)
		rg.Result = &s
	}
	return rg
}

func (rg *redisGame) toDomain() *domain.Game {
	g := &domain.Game{
		ID:               rg.ID,
		OwnerID:          rg.OwnerID,
		Status:           domain.Status(rg.Status),
		Difficulty:       rg.Difficulty,
		TimeControl:      domain.TimeControl(rg.TimeControl),
		CurrentFEN:       rg.CurrentFEN,
		MovesUCI:         append([]string(nil), rg.MovesUCI...),
		MovesSAN:         append([]string(nil), rg.MovesSAN...),
		TimeLeftUserMs:   rg.TimeLeftUserMs,
		TimeLeftEngineMs: rg.TimeLeftEngineMs,
		TurnStartedAt:    rg.TurnStartedAt,
		Version:          rg.Version,
		CreatedAt:        rg.CreatedAt,
		UpdatedAt:        rg.UpdatedAt,
	}
	if rg.Result != nil {
		r := domain.Result(*rg.Result)
		g.Result = &r
	}
	return g
}

func (s *redisStore) Create(ctx context.Context, game *domain.Game) error {
	if game == nil || game.ID == "" {
		return fmt.Errorf("nil or unidentified game")
	}
	raw, err := json.Marshal(toRedisGame(game))
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, gameKey(game.ID), raw, redisGameTTL).Result()
	if err != nil {
		return fmt.Errorf("set game: %w", err)
	}
	if !ok {
		return fmt.Errorf("game %s already exists", game.ID)
	}
	if err := s.rdb.SAdd(ctx, ownerKey(game.OwnerID), game.ID).Err(); err != nil {
		return fmt.Errorf("index game: %w", err)
	}
	_ = s.rdb.Expire(ctx, ownerKey(game.OwnerID), redisGameTTL).Err()
	return nil
}

func (s *redisStore) Get(ctx context.Context, id, ownerID string) (*domain.Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	var rg redisGame
	if err := json.Unmarshal(raw, &rg); err != nil {
		return nil, fmt.Errorf("unmarshal game: %w", err)
	}
	if rg.OwnerID != ownerID {
		return nil, nil
	}
	return rg.toDomain(), nil
}

func (s *redisStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ids, err := s.rdb.SMembers(ctx, ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("owner index: %w", err)
	}
	games := make([]*domain.Game, 0, len(ids))
	for _, id := range ids {
		g, err := s.Get(ctx, id, ownerID)
		if err != nil || g == nil {
			continue
		}
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].UpdatedAt.After(games[j].UpdatedAt) })
	if len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (s *redisStore) UpdateVersioned(ctx context.Context, game *domain.Game, expectedVersion int64) (bool, error) {
	if game == nil || game.ID == "" {
		return false, fmt.Errorf("nil or unidentified game")
	}
	key := gameKey(game.ID)
	conflict := false

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			conflict = true
			return nil
		}
		if err != nil {
			return err
		}
		var stored redisGame
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if stored.OwnerID != game.OwnerID || stored.Version != expectedVersion {
			conflict = true
			return nil
		}

		next := toRedisGame(game)
		next.Version = expectedVersion + 1
		next.UpdatedAt = time.Now()
		newRaw, err := json.Marshal(next)
		if err != nil {
			return err
		}

		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, redisGameTTL)
		_, err = pipe.Exec(ctx)
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the key mid-transaction.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("versioned update: %w", err)
	}
	if conflict {
		return false, nil
	}
	game.Version = expectedVersion + 1
	game.UpdatedAt = time.Now()
	return true, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
