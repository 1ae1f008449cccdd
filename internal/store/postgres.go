package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"chessmate/internal/domain"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a Postgres-backed GameStore. The conditional
// update relies on a plain `WHERE id AND owner_id AND version` clause
// with the affected-row count as the success signal, so no explicit row
// locks are ever taken.
func NewPostgresStore(databaseURL string) (GameStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (p *postgresStore) Create(ctx context.Context, game *domain.Game) error {
	if game == nil {
		return fmt.Errorf("nil game payload")
	}
	movesUCI, err := json.Marshal(game.MovesUCI)
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO chess_games (
			id,
			owner_id,
			status,
			difficulty,
			time_control,
			current_fen,
			moves_uci,
			moves_san,
			time_left_user_ms,
			time_left_engine_ms,
			turn_started_at,
			result,
			version,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12, $13, $14, $15)`

	_, err = p.db.ExecContext(
		ctx,
		query,
		game.ID,
		game.OwnerID,
		string(game.Status),
		game.Difficulty,
		string(game.TimeControl),
		game.CurrentFEN,
		movesUCI,
		movesSAN,
		game.TimeLeftUserMs,
		game.TimeLeftEngineMs,
		nullableTime(game.TurnStartedAt),
		nullableResult(game.Result),
		game.Version,
		game.CreatedAt,
		game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chess game: %w", err)
	}
	return nil
}

const gameColumns = `
	id,
	owner_id,
	status,
	difficulty,
	time_control,
	current_fen,
	moves_uci,
	moves_san,
	time_left_user_ms,
	time_left_engine_ms,
	turn_started_at,
	result,
	version,
	created_at,
	updated_at`

func (p *postgresStore) Get(ctx context.Context, id, ownerID string) (*domain.Game, error) {
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE id = $1 AND owner_id = $2`

	game, err := scanGame(p.db.QueryRowContext(ctx, query, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select chess game: %w", err)
	}
	return game, nil
}

func (p *postgresStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chess game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (p *postgresStore) UpdateVersioned(ctx context.Context, game *domain.Game, expectedVersion int64) (bool, error) {
	if game == nil {
		return false, fmt.Errorf("nil game payload")
	}
	movesUCI, err := json.Marshal(game.MovesUCI)
	if err != nil {
		return false, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return false, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		UPDATE chess_games SET
			status = $4,
			current_fen = $5,
			moves_uci = $6::jsonb,
			moves_san = $7::jsonb,
			time_left_user_ms = $8,
			time_left_engine_ms = $9,
			turn_started_at = $10,
			result = $11,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND version = $3`

	res, err := p.db.ExecContext(
		ctx,
		query,
		game.ID,
		game.OwnerID,
		expectedVersion,
		string(game.Status),
		game.CurrentFEN,
		movesUCI,
		movesSAN,
		game.TimeLeftUserMs,
		game.TimeLeftEngineMs,
		nullableTime(game.TurnStartedAt),
		nullableResult(game.Result),
	)
	if err != nil {
		return false, fmt.Errorf("conditional update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	game.Version = expectedVersion + 1
	game.UpdatedAt = time.Now()
	return true, nil
}

func (p *postgresStore) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		game          domain.Game
		status        string
		timeControl   string
		movesUCIJSON  []byte
		movesSANJSON  []byte
		turnStartedAt sql.NullTime
		result        sql.NullString
	)
	if err := row.Scan(
		&game.ID,
		&game.OwnerID,
		&status,
		&game.Difficulty,
		&timeControl,
		&game.CurrentFEN,
		&movesUCIJSON,
		&movesSANJSON,
		&game.TimeLeftUserMs,
		&game.TimeLeftEngineMs,
		&turnStartedAt,
		&result,
		&game.Version,
		&game.CreatedAt,
		&game.UpdatedAt,
	); err != nil {
		return nil, err
	}
	game.Status = domain.Status(status)
	game.TimeControl = domain.TimeControl(timeControl)
	if turnStartedAt.Valid {
		t := turnStartedAt.Time
		game.TurnStartedAt = &t
	}
	if result.Valid {
		r := domain.Result(result.String)
		game.Result = &r
	}
	if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &game, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableResult(r *domain.Result) any {
	if r == nil {
		return nil
	}
	return string(*r)
}
