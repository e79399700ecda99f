package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/rating-system/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchVersionConflict - сохранённая version не совпала с ожидаемой:
	// вызывающий работал с устаревшим состоянием и должен перечитать матч.
	ErrMatchVersionConflict = errors.New("match version conflict")
)

type MatchRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, stateFilter *models.MatchState) ([]*models.Match, error)
	// UpdateState - compare-and-swap по version: WHERE id AND version.
	// Ноль затронутых строк при существующем матче означает конфликт версий.
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.MatchState, expectedVersion int) error
	UpdateScoreState(ctx context.Context, exec SQLExecutor, id int, score *models.Score, state models.MatchState, expectedVersion int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) scanMatch(row interface {
	Scan(dest ...interface{}) error
}) (*models.Match, error) {
	match := &models.Match{}
	var side1, side2 pq.Int64Array
	var scoreRaw []byte

	err := row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.Round,
		&side1,
		&side2,
		&match.RefereeID,
		&match.CourtID,
		&match.State,
		&scoreRaw,
		&match.Version,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	match.Side1Players = int64sToInts(side1)
	match.Side2Players = int64sToInts(side2)

	if len(scoreRaw) > 0 {
		var score models.Score
		if err := json.Unmarshal(scoreRaw, &score); err != nil {
			return nil, fmt.Errorf("failed to decode score for match %d: %w", match.ID, err)
		}
		match.Score = &score
	}
	return match, nil
}

const matchColumns = `id, tournament_id, round, side1_players, side2_players, referee_id, court_id, state, score, version, created_at`

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns)

	match, err := r.scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, stateFilter *models.MatchState) ([]*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE tournament_id = $1`, matchColumns)
	args := []interface{}{tournamentID}

	if stateFilter != nil {
		query += ` AND state = $2`
		args = append(args, *stateFilter)
	}
	query += ` ORDER BY round ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matchList := make([]*models.Match, 0)
	for rows.Next() {
		match, err := r.scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matchList = append(matchList, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matchList, nil
}

func (r *postgresMatchRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.MatchState, expectedVersion int) error {
	query := `
		UPDATE matches
		SET state = $2, version = version + 1
		WHERE id = $1 AND version = $3`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, id, state, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update match %d state: %w", id, err)
	}
	return r.checkVersionedUpdate(ctx, exec, result, id)
}

func (r *postgresMatchRepository) UpdateScoreState(ctx context.Context, exec SQLExecutor, id int, score *models.Score, state models.MatchState, expectedVersion int) error {
	scoreRaw, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to encode score for match %d: %w", id, err)
	}

	query := `
		UPDATE matches
		SET score = $2, state = $3, version = version + 1
		WHERE id = $1 AND version = $4`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, id, scoreRaw, state, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update match %d score: %w", id, err)
	}
	return r.checkVersionedUpdate(ctx, exec, result, id)
}

// checkVersionedUpdate различает "матча нет" и "версия устарела".
func (r *postgresMatchRepository) checkVersionedUpdate(ctx context.Context, exec SQLExecutor, result sql.Result, id int) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for match %d: %w", id, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM matches WHERE id = $1)`
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check match %d existence: %w", id, err)
	}
	if !exists {
		return ErrMatchNotFound
	}
	return ErrMatchVersionConflict
}

func int64sToInts(in pq.Int64Array) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
