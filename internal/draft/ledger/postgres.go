package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/draftroom/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore is the durable ledger for one room. The conditional
// insert plus the (room_id, pick_number) and (room_id, player_id) unique
// keys give the compare-and-append guarantee across processes and
// restarts: a crash can never lose a committed pick or re-issue a pick
// number.
type PostgresStore struct {
	pool   *pgxpool.Pool
	roomID uuid.UUID
}

// NewPostgresStore binds a store to one room's rows.
func NewPostgresStore(pool *pgxpool.Pool, roomID uuid.UUID) *PostgresStore {
	return &PostgresStore{pool: pool, roomID: roomID}
}

func (s *PostgresStore) Append(ctx context.Context, pick models.Pick) (models.Pick, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO draft_picks
			(id, room_id, pick_number, round, slot_in_round, participant_index, player_id, resolved_by, resolved_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE (SELECT COUNT(*) FROM draft_picks WHERE room_id = $2) = $3 - 1`,
		pick.ID, s.roomID, pick.PickNumber, pick.Round, pick.SlotInRound,
		pick.ParticipantIndex, pick.PlayerID, pick.ResolvedBy, pick.ResolvedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "draft_picks_room_player_key" {
				return models.Pick{}, ErrDuplicatePlayer
			}
			// Two appends raced the same pick number; the other one won.
			return models.Pick{}, ErrStaleAppend
		}
		return models.Pick{}, fmt.Errorf("failed to append pick: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Pick{}, ErrStaleAppend
	}
	return pick, nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM draft_picks WHERE room_id = $1`, s.roomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count picks: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) RosterFor(ctx context.Context, participantIndex int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT player_id FROM draft_picks
		WHERE room_id = $1 AND participant_index = $2
		ORDER BY pick_number`,
		s.roomID, participantIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	defer rows.Close()

	var roster []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		roster = append(roster, id)
	}
	return roster, rows.Err()
}

func (s *PostgresStore) IsPlayerDrafted(ctx context.Context, playerID uuid.UUID) (bool, error) {
	var drafted bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM draft_picks WHERE room_id = $1 AND player_id = $2
		)`,
		s.roomID, playerID,
	).Scan(&drafted)
	if err != nil {
		return false, fmt.Errorf("failed to check drafted player: %w", err)
	}
	return drafted, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pick_number, round, slot_in_round, participant_index, player_id, resolved_by, resolved_at
		FROM draft_picks
		WHERE room_id = $1
		ORDER BY pick_number`,
		s.roomID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load picks: %w", err)
	}
	defer rows.Close()

	snap := Snapshot{DraftedPlayers: make(map[uuid.UUID]bool)}
	for rows.Next() {
		p := models.Pick{RoomID: s.roomID}
		if err := rows.Scan(&p.ID, &p.PickNumber, &p.Round, &p.SlotInRound,
			&p.ParticipantIndex, &p.PlayerID, &p.ResolvedBy, &p.ResolvedAt); err != nil {
			return Snapshot{}, fmt.Errorf("failed to scan pick row: %w", err)
		}
		snap.Picks = append(snap.Picks, p)
		snap.DraftedPlayers[p.PlayerID] = true
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("failed to read pick rows: %w", err)
	}

	snap.CurrentPickNumber = len(snap.Picks) + 1
	return snap, nil
}
