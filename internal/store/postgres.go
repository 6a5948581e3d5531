package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftroom/internal/models"
)

const uniqueViolation = "23505"

// Postgres is a Store backed by a pgx connection pool. Unique indexes on
// (room_id, pick_number) and (room_id, player_id) make the pick append the
// durable arbiter of exactly-once commits.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and returns a Postgres store.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS draft_rooms (
    id         UUID PRIMARY KEY,
    config     JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS draft_picks (
    room_id       UUID NOT NULL REFERENCES draft_rooms(id),
    pick_number   INTEGER NOT NULL,
    round         INTEGER NOT NULL,
    slot_in_round INTEGER NOT NULL,
    seat_index    INTEGER NOT NULL,
    player_id     TEXT NOT NULL,
    origin        TEXT NOT NULL,
    picked_at     TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (room_id, pick_number),
    UNIQUE (room_id, player_id)
);

CREATE TABLE IF NOT EXISTS seat_queues (
    room_id    UUID NOT NULL REFERENCES draft_rooms(id),
    seat_index INTEGER NOT NULL,
    player_ids JSONB NOT NULL,
    PRIMARY KEY (room_id, seat_index)
);`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) SaveRoom(ctx context.Context, cfg models.RoomConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal room config: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO draft_rooms (id, config, created_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config`,
		cfg.ID, raw, cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (p *Postgres) LoadRoom(ctx context.Context, roomID uuid.UUID) (models.RoomConfig, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT config FROM draft_rooms WHERE id = $1`, roomID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoomConfig{}, ErrRoomNotFound
	}
	if err != nil {
		return models.RoomConfig{}, fmt.Errorf("load room: %w", err)
	}

	var cfg models.RoomConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.RoomConfig{}, fmt.Errorf("unmarshal room config: %w", err)
	}
	return cfg, nil
}

func (p *Postgres) LoadRooms(ctx context.Context) ([]models.RoomConfig, error) {
	rows, err := p.pool.Query(ctx, `SELECT config FROM draft_rooms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	defer rows.Close()

	var out []models.RoomConfig
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		var cfg models.RoomConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal room config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendPick(ctx context.Context, pick models.Pick) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO draft_picks (room_id, pick_number, round, slot_in_round, seat_index, player_id, origin, picked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pick.RoomID, pick.PickNumber, pick.Round, pick.SlotInRound,
		pick.SeatIndex, pick.PlayerID, string(pick.Origin), pick.PickedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicatePick
		}
		return fmt.Errorf("append pick: %w", err)
	}
	return nil
}

func (p *Postgres) Picks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error) {
	rows, err := p.pool.Query(ctx, `
SELECT room_id, pick_number, round, slot_in_round, seat_index, player_id, origin, picked_at
FROM draft_picks WHERE room_id = $1 ORDER BY pick_number`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load picks: %w", err)
	}
	defer rows.Close()

	var out []models.Pick
	for rows.Next() {
		var pick models.Pick
		var origin string
		if err := rows.Scan(&pick.RoomID, &pick.PickNumber, &pick.Round, &pick.SlotInRound,
			&pick.SeatIndex, &pick.PlayerID, &origin, &pick.PickedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		pick.Origin = models.PickOrigin(origin)
		out = append(out, pick)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveQueue(ctx context.Context, roomID uuid.UUID, seat int, playerIDs []string) error {
	raw, err := json.Marshal(playerIDs)
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO seat_queues (room_id, seat_index, player_ids) VALUES ($1, $2, $3)
ON CONFLICT (room_id, seat_index) DO UPDATE SET player_ids = EXCLUDED.player_ids`,
		roomID, seat, raw)
	if err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

func (p *Postgres) Queues(ctx context.Context, roomID uuid.UUID) (map[int][]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT seat_index, player_ids FROM seat_queues WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load queues: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]string)
	for rows.Next() {
		var seat int
		var raw []byte
		if err := rows.Scan(&seat, &raw); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("unmarshal queue: %w", err)
		}
		out[seat] = ids
	}
	return out, rows.Err()
}
