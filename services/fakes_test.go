package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/rating-system/models"
	"github.com/Dosada05/rating-system/repositories"
	"github.com/Dosada05/rating-system/storage"
)

// In-memory фейки репозиториев. Транзактор сериализует WithinTx мьютексом,
// воспроизводя блокировку строк в Postgres.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memTransactor struct {
	mu sync.Mutex
}

func (t *memTransactor) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

type memMatchRepo struct {
	mu      sync.Mutex
	matches map[int]*models.Match
}

func newMemMatchRepo(matches ...*models.Match) *memMatchRepo {
	repo := &memMatchRepo{matches: make(map[int]*models.Match)}
	for _, m := range matches {
		c := *m
		repo.matches[m.ID] = &c
	}
	return repo
}

func (r *memMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	c := *m
	if m.Score != nil {
		sc := *m.Score
		c.Score = &sc
	}
	return &c, nil
}

func (r *memMatchRepo) ListByTournament(ctx context.Context, tournamentID int, stateFilter *models.MatchState) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if stateFilter != nil && m.State != *stateFilter {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (r *memMatchRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, id int, state models.MatchState, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Version != expectedVersion {
		return repositories.ErrMatchVersionConflict
	}
	m.State = state
	m.Version++
	return nil
}

func (r *memMatchRepo) UpdateScoreState(ctx context.Context, exec repositories.SQLExecutor, id int, score *models.Score, state models.MatchState, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Version != expectedVersion {
		return repositories.ErrMatchVersionConflict
	}
	sc := *score
	m.Score = &sc
	m.State = state
	m.Version++
	return nil
}

type historyKey struct {
	playerID int
	matchID  int
}

type memRatingRepo struct {
	mu      sync.Mutex
	ratings map[int]models.Rating
	history map[historyKey]*models.RatingHistoryEntry
	nextID  int
}

func newMemRatingRepo() *memRatingRepo {
	return &memRatingRepo{
		ratings: make(map[int]models.Rating),
		history: make(map[historyKey]*models.RatingHistoryEntry),
	}
}

func (r *memRatingRepo) GetByPlayer(ctx context.Context, playerID int) (*models.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.ratings[playerID]
	if !ok {
		return nil, repositories.ErrRatingNotFound
	}
	return &row, nil
}

func (r *memRatingRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, playerIDs []int) (map[int]models.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]models.Rating, len(playerIDs))
	for _, id := range playerIDs {
		if row, ok := r.ratings[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func (r *memRatingRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, rating *models.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings[rating.PlayerID] = *rating
	return nil
}

func (r *memRatingRepo) InsertHistory(ctx context.Context, exec repositories.SQLExecutor, entry *models.RatingHistoryEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := historyKey{entry.PlayerID, entry.MatchID}
	if _, exists := r.history[key]; exists {
		return false, nil
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now().UTC()
	c := *entry
	r.history[key] = &c
	return true, nil
}

func (r *memRatingRepo) ListHistoryByPlayer(ctx context.Context, playerID, limit int) ([]*models.RatingHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.RatingHistoryEntry, 0)
	for _, e := range r.history {
		if e.PlayerID == playerID && len(out) < limit {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memRatingRepo) ListHistoryByTournament(ctx context.Context, tournamentID int) ([]*models.RatingHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.RatingHistoryEntry, 0)
	for _, e := range r.history {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *memRatingRepo) ListTop(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LeaderboardEntry, 0, limit)
	for _, row := range r.ratings {
		if len(out) == limit {
			break
		}
		out = append(out, models.LeaderboardEntry{PlayerID: row.PlayerID, Mu: row.Mu, Sigma: row.Sigma})
	}
	return out, nil
}

func (r *memRatingRepo) historyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func (r *memRatingRepo) rating(playerID int) (models.Rating, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.ratings[playerID]
	return row, ok
}

type memTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
}

func newMemTournamentRepo(tournaments ...*models.Tournament) *memTournamentRepo {
	repo := &memTournamentRepo{tournaments: make(map[int]*models.Tournament)}
	for _, t := range tournaments {
		c := *t
		repo.tournaments[t.ID] = &c
	}
	return repo
}

func (r *memTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (r *memTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	// Сериализация обеспечивается мьютексом транзактора.
	return r.GetByID(ctx, exec, id)
}

func (r *memTournamentRepo) ListCompletedUnarchived(ctx context.Context, limit int) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.tournaments {
		if t.Status == models.StatusCompleted && t.ArchiveKey == nil && len(out) < limit {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memTournamentRepo) SetArchiveKey(ctx context.Context, id int, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	k := key
	t.ArchiveKey = &k
	return nil
}

type memRegistrationRepo struct {
	mu     sync.Mutex
	regs   map[int]*models.Registration
	nextID int
}

func newMemRegistrationRepo() *memRegistrationRepo {
	return &memRegistrationRepo{regs: make(map[int]*models.Registration)}
}

func (r *memRegistrationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.regs {
		if existing.TournamentID == reg.TournamentID && existing.PlayerID == reg.PlayerID {
			return repositories.ErrRegistrationConflict
		}
	}
	r.nextID++
	reg.ID = r.nextID
	reg.CreatedAt = time.Now().UTC()
	c := *reg
	r.regs[reg.ID] = &c
	return nil
}

func (r *memRegistrationRepo) Exists(ctx context.Context, exec repositories.SQLExecutor, tournamentID, playerID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regs {
		if reg.TournamentID == tournamentID && reg.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRegistrationRepo) FindByID(ctx context.Context, id int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	c := *reg
	return &c, nil
}

func (r *memRegistrationRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, reg := range r.regs {
		if reg.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *memRegistrationRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Registration, 0)
	for _, reg := range r.regs {
		if reg.TournamentID == tournamentID {
			c := *reg
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memRegistrationRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regs[id]; !ok {
		return repositories.ErrRegistrationNotFound
	}
	delete(r.regs, id)
	return nil
}

type memUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
	failing bool
}

func newMemUploader() *memUploader {
	return &memUploader{uploads: make(map[string][]byte)}
}

func (u *memUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failing {
		return nil, ErrStorageUnavailable
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.uploads[key] = body
	return &storage.UploadResult{Key: key, Location: "mem://" + key}, nil
}

func (u *memUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.uploads, key)
	return nil
}

func (u *memUploader) GetPublicURL(key string) string {
	return "mem://" + key
}
