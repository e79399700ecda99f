package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/rating-system/models"
	"github.com/lib/pq"
)

var ErrRatingNotFound = errors.New("player rating not found")

type RatingRepository interface {
	GetByPlayer(ctx context.Context, playerID int) (*models.Rating, error)
	// GetForUpdate блокирует строки рейтингов участников (FOR UPDATE) внутри
	// транзакции, сериализуя конкурентные финализации с общим игроком.
	// Возвращает только существующие строки; отсутствующие игроки получают
	// прайор на уровне сервиса.
	GetForUpdate(ctx context.Context, exec SQLExecutor, playerIDs []int) (map[int]models.Rating, error)
	Upsert(ctx context.Context, exec SQLExecutor, rating *models.Rating) error
	// InsertHistory добавляет запись истории. Возвращает false без ошибки,
	// если запись для (player_id, match_id) уже существует - на этом держится
	// гарантия "не более одного обновления рейтинга на матч".
	InsertHistory(ctx context.Context, exec SQLExecutor, entry *models.RatingHistoryEntry) (bool, error)
	ListHistoryByPlayer(ctx context.Context, playerID, limit int) ([]*models.RatingHistoryEntry, error)
	ListHistoryByTournament(ctx context.Context, tournamentID int) ([]*models.RatingHistoryEntry, error)
	ListTop(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRatingRepository) GetByPlayer(ctx context.Context, playerID int) (*models.Rating, error) {
	query := `SELECT player_id, mu, sigma, last_updated FROM player_ratings WHERE player_id = $1`

	rating := &models.Rating{}
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&rating.PlayerID,
		&rating.Mu,
		&rating.Sigma,
		&rating.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to get rating for player %d: %w", playerID, err)
	}
	return rating, nil
}

func (r *postgresRatingRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, playerIDs []int) (map[int]models.Rating, error) {
	// ORDER BY player_id даёт стабильный порядок захвата блокировок,
	// иначе две финализации с пересекающимися участниками могут
	// взаимоблокироваться.
	query := `
		SELECT player_id, mu, sigma, last_updated
		FROM player_ratings
		WHERE player_id = ANY($1)
		ORDER BY player_id
		FOR UPDATE`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(playerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to lock ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[int]models.Rating, len(playerIDs))
	for rows.Next() {
		var rating models.Rating
		if err := rows.Scan(&rating.PlayerID, &rating.Mu, &rating.Sigma, &rating.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		ratings[rating.PlayerID] = rating
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating rows: %w", err)
	}
	return ratings, nil
}

func (r *postgresRatingRepository) Upsert(ctx context.Context, exec SQLExecutor, rating *models.Rating) error {
	query := `
		INSERT INTO player_ratings (player_id, mu, sigma, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE
		SET mu = EXCLUDED.mu, sigma = EXCLUDED.sigma, last_updated = EXCLUDED.last_updated`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		rating.PlayerID,
		rating.Mu,
		rating.Sigma,
		rating.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rating for player %d: %w", rating.PlayerID, err)
	}
	return nil
}

func (r *postgresRatingRepository) InsertHistory(ctx context.Context, exec SQLExecutor, entry *models.RatingHistoryEntry) (bool, error) {
	query := `
		INSERT INTO rating_history (player_id, match_id, old_mu, old_sigma, new_mu, new_sigma)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, match_id) DO NOTHING
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		entry.PlayerID,
		entry.MatchID,
		entry.OldMu,
		entry.OldSigma,
		entry.NewMu,
		entry.NewSigma,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Запись уже существует - повторное применение подавлено.
			return false, nil
		}
		return false, fmt.Errorf("failed to insert rating history for player %d match %d: %w", entry.PlayerID, entry.MatchID, err)
	}
	return true, nil
}

const historyEntryColumns = `
	h.id, h.player_id, h.match_id, h.old_mu, h.old_sigma, h.new_mu, h.new_sigma, h.created_at,
	m.id, m.tournament_id, m.round, m.state, m.version, m.created_at,
	t.id, t.name, t.host_id, t.capacity, t.status, t.created_at`

const historyEntryJoins = `
	JOIN matches m ON h.match_id = m.id
	JOIN tournaments t ON m.tournament_id = t.id`

func scanHistoryEntry(rows *sql.Rows) (*models.RatingHistoryEntry, error) {
	var entry models.RatingHistoryEntry
	var match models.Match
	var tournament models.Tournament

	err := rows.Scan(
		&entry.ID, &entry.PlayerID, &entry.MatchID,
		&entry.OldMu, &entry.OldSigma, &entry.NewMu, &entry.NewSigma, &entry.CreatedAt,
		&match.ID, &match.TournamentID, &match.Round, &match.State, &match.Version, &match.CreatedAt,
		&tournament.ID, &tournament.Name, &tournament.HostID, &tournament.Capacity, &tournament.Status, &tournament.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rating history row: %w", err)
	}
	entry.Match = &match
	entry.Tournament = &tournament
	return &entry, nil
}

func (r *postgresRatingRepository) ListHistoryByPlayer(ctx context.Context, playerID, limit int) ([]*models.RatingHistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM rating_history h
		%s
		WHERE h.player_id = $1
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT $2`, historyEntryColumns, historyEntryJoins)

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history for player %d: %w", playerID, err)
	}
	defer rows.Close()

	entries := make([]*models.RatingHistoryEntry, 0)
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating history rows: %w", err)
	}
	return entries, nil
}

func (r *postgresRatingRepository) ListHistoryByTournament(ctx context.Context, tournamentID int) ([]*models.RatingHistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM rating_history h
		%s
		WHERE m.tournament_id = $1
		ORDER BY h.created_at ASC, h.id ASC`, historyEntryColumns, historyEntryJoins)

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entries := make([]*models.RatingHistoryEntry, 0)
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating history rows: %w", err)
	}
	return entries, nil
}

func (r *postgresRatingRepository) ListTop(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT player_id, mu, sigma
		FROM player_ratings
		ORDER BY mu DESC, player_id ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	rank := 1
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.PlayerID, &entry.Mu, &entry.Sigma); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entry.Rank = rank
		rank++
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}
	return entries, nil
}
