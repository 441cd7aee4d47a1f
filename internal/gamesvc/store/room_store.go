package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomStarted   = errors.New("room has already started")
	ErrRoomCodeTaken = errors.New("room code already in use")
	ErrNicknameTaken = errors.New("nickname already taken in this room")
)

type RoomStore struct {
	db DB
}

func NewRoomStore(db DB) *RoomStore {
	return &RoomStore{db: db}
}

// CreateRoom inserts the room and its host player in one transaction.
func (s *RoomStore) CreateRoom(ctx context.Context, id, code, hostNickname string) (*models.Room, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room := &models.Room{ID: id, RoomCode: code, HostNickname: hostNickname}
	err = tx.QueryRow(ctx, `
		INSERT INTO rooms (id, room_code, host_nickname)
		VALUES ($1, $2, $3)
		RETURNING game_started, created_at
	`, id, code, hostNickname).Scan(&room.GameStarted, &room.CreatedAt)
	if err != nil {
		if code, _ := pgError(err); code == pgUniqueViolation {
			return nil, ErrRoomCodeTaken
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO players (room_id, nickname)
		VALUES ($1, $2)
	`, id, hostNickname); err != nil {
		return nil, fmt.Errorf("insert host player: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return room, nil
}

func (s *RoomStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	return s.scanRoom(s.db.QueryRow(ctx, `
		SELECT id::text, room_code, host_nickname, game_started, created_at
		FROM rooms
		WHERE id = $1
	`, id))
}

func (s *RoomStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.scanRoom(s.db.QueryRow(ctx, `
		SELECT id::text, room_code, host_nickname, game_started, created_at
		FROM rooms
		WHERE room_code = $1
	`, code))
}

func (s *RoomStore) scanRoom(row Row) (*models.Room, error) {
	room := &models.Room{}
	err := row.Scan(&room.ID, &room.RoomCode, &room.HostNickname, &room.GameStarted, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// AddPlayer joins nickname to a room that has not started yet.
// It fails with:
// - ErrRoomStarted when the room is missing or already started (CTE matches no row).
// - ErrNicknameTaken on the unique_room_nickname constraint.
func (s *RoomStore) AddPlayer(ctx context.Context, roomID, nickname string) (*models.Player, error) {
	const query = `
WITH open_room AS (
  SELECT id
  FROM rooms
  WHERE id = $1
    AND game_started = FALSE
  FOR UPDATE
)
INSERT INTO players (room_id, nickname)
SELECT r.id, $2
FROM open_room r
RETURNING id, room_id::text, nickname, score, completed, created_at, updated_at;
`
	p := &models.Player{}
	err := s.db.QueryRow(ctx, query, roomID, nickname).Scan(
		&p.ID,
		&p.RoomID,
		&p.Nickname,
		&p.Score,
		&p.Completed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomStarted
		}
		if code, constraint := pgError(err); code == pgUniqueViolation && constraint == "unique_room_nickname" {
			return nil, ErrNicknameTaken
		}
		return nil, fmt.Errorf("failed to add player: %w", err)
	}
	return p, nil
}

func (s *RoomStore) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, room_id::text, nickname, COALESCE(game_state::text, ''), score, completed, created_at, updated_at
		FROM players
		WHERE room_id = $1
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		var state string
		if err := rows.Scan(
			&p.ID,
			&p.RoomID,
			&p.Nickname,
			&state,
			&p.Score,
			&p.Completed,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if state != "" {
			p.GameState = []byte(state)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return players, nil
}

// UpsertPlayerState writes the player's own row. A deleted room surfaces as
// ErrRoomNotFound through the foreign key.
func (s *RoomStore) UpsertPlayerState(ctx context.Context, roomID, nickname string, state []byte, score int, completed bool) (*models.Player, error) {
	p := &models.Player{RoomID: roomID, Nickname: nickname, GameState: state, Score: score, Completed: completed}
	err := s.db.QueryRow(ctx, `
		INSERT INTO players (room_id, nickname, game_state, score, completed)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (room_id, nickname) DO UPDATE
		SET game_state = EXCLUDED.game_state,
		    score = EXCLUDED.score,
		    completed = EXCLUDED.completed,
		    updated_at = now()
		RETURNING id, created_at, updated_at
	`, roomID, nickname, string(state), score, completed).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if code, _ := pgError(err); code == pgForeignKeyViolation {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to upsert player state: %w", err)
	}
	return p, nil
}

func (s *RoomStore) DeletePlayer(ctx context.Context, roomID, nickname string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM players WHERE room_id = $1 AND nickname = $2`, roomID, nickname)
	if err != nil {
		return false, fmt.Errorf("delete player: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteRoom removes the room; players cascade.
func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	if err != nil {
		return false, fmt.Errorf("delete room: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *RoomStore) MarkStarted(ctx context.Context, roomID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE rooms SET game_started = TRUE WHERE id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("start room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// PurgeAbandoned deletes rooms older than ttl and rooms left without any
// player for longer than idle. Rows locked by another janitor are skipped.
func (s *RoomStore) PurgeAbandoned(ctx context.Context, ttl, idle time.Duration) ([]string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT r.id::text
		FROM rooms r
		WHERE r.created_at < now() - make_interval(secs => $1)
		   OR (r.created_at < now() - make_interval(secs => $2)
		       AND NOT EXISTS (SELECT 1 FROM players p WHERE p.room_id = r.id))
		FOR UPDATE SKIP LOCKED
	`, ttl.Seconds(), idle.Seconds())
	if err != nil {
		return nil, fmt.Errorf("select abandoned rooms: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("delete room %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return ids, nil
}
