package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/rating-system/models"
	"github.com/Dosada05/rating-system/repositories"
	"github.com/Dosada05/rating-system/storage"
)

const archiveBatchSize = 10

// ArchiveService экспортирует журнал истории рейтингов завершённых турниров
// в объектное хранилище одним JSON-документом на турнир. Ключ архива
// записывается на строку турнира, чтобы экспорт не повторялся.
type ArchiveService struct {
	tournamentRepo repositories.TournamentRepository
	ratingRepo     repositories.RatingRepository
	uploader       storage.Uploader
	logger         *slog.Logger
}

func NewArchiveService(
	tournamentRepo repositories.TournamentRepository,
	ratingRepo repositories.RatingRepository,
	uploader storage.Uploader,
	logger *slog.Logger,
) *ArchiveService {
	return &ArchiveService{
		tournamentRepo: tournamentRepo,
		ratingRepo:     ratingRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

type tournamentArchive struct {
	Tournament *models.Tournament           `json:"tournament"`
	Entries    []*models.RatingHistoryEntry `json:"entries"`
	ExportedAt time.Time                    `json:"exported_at"`
}

// ArchiveCompletedTournaments экспортирует очередную партию завершённых,
// ещё не заархивированных турниров. Вызывается планировщиком.
func (s *ArchiveService) ArchiveCompletedTournaments(ctx context.Context) error {
	tournaments, err := s.tournamentRepo.ListCompletedUnarchived(ctx, archiveBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list tournaments for archiving: %w", err)
	}

	for _, tournament := range tournaments {
		if err := s.archiveOne(ctx, tournament); err != nil {
			// Неудача одного турнира не останавливает остальные.
			s.logger.Error("failed to archive tournament",
				slog.Int("tournament_id", tournament.ID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (s *ArchiveService) archiveOne(ctx context.Context, tournament *models.Tournament) error {
	entries, err := s.ratingRepo.ListHistoryByTournament(ctx, tournament.ID)
	if err != nil {
		return fmt.Errorf("failed to collect rating history: %w", err)
	}

	doc := tournamentArchive{
		Tournament: tournament,
		Entries:    entries,
		ExportedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode archive document: %w", err)
	}

	key := fmt.Sprintf("archives/tournaments/%d/rating-history.json", tournament.ID)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	if err := s.tournamentRepo.SetArchiveKey(ctx, tournament.ID, result.Key); err != nil {
		return fmt.Errorf("failed to record archive key: %w", err)
	}

	s.logger.Info("tournament rating history archived",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("entries", len(entries)),
		slog.String("key", result.Key),
	)
	return nil
}
