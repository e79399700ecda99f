package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/rating-system/models"
)

var ErrTournamentNotFound = errors.New("tournament not found")

// TournamentRepository - read-only доступ к турнирам внешнего коллаборатора.
// Единственная запись - archive_key, принадлежащий экспортёру истории.
type TournamentRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetByIDForUpdate блокирует строку турнира, делая проверку
	// вместимости и вставку регистрации одной атомарной единицей.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	ListCompletedUnarchived(ctx context.Context, limit int) ([]*models.Tournament, error)
	SetArchiveKey(ctx context.Context, id int, key string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, host_id, capacity, status, archive_key, created_at`

func (r *postgresTournamentRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.HostID,
		&t.Capacity,
		&t.Status,
		&t.ArchiveKey,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1`, tournamentColumns)
	return r.getOne(ctx, exec, query, id)
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1 FOR UPDATE`, tournamentColumns)
	return r.getOne(ctx, exec, query, id)
}

func (r *postgresTournamentRepository) ListCompletedUnarchived(ctx context.Context, limit int) ([]*models.Tournament, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tournaments
		WHERE status = $1 AND archive_key IS NULL
		ORDER BY id ASC
		LIMIT $2`, tournamentColumns)

	rows, err := r.db.QueryContext(ctx, query, models.StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t := &models.Tournament{}
		if err := rows.Scan(&t.ID, &t.Name, &t.HostID, &t.Capacity, &t.Status, &t.ArchiveKey, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) SetArchiveKey(ctx context.Context, id int, key string) error {
	query := `UPDATE tournaments SET archive_key = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return fmt.Errorf("failed to set archive key for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
