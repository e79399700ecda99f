package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/rating-system/live"
	"github.com/Dosada05/rating-system/matches"
	"github.com/Dosada05/rating-system/models"
	"github.com/Dosada05/rating-system/rating"
	"github.com/Dosada05/rating-system/repositories"
	"github.com/google/uuid"
)

// MatchService - координатор конвейера "результат матча -> обновление
// рейтинга". Принимает отчёт о счёте, ведёт машину состояний, вызывает
// движок рейтинга, атомарно фиксирует результат и оповещает живой канал.
type MatchService struct {
	txr            repositories.Transactor
	matchRepo      repositories.MatchRepository
	ratingRepo     repositories.RatingRepository
	tournamentRepo repositories.TournamentRepository
	engine         *rating.Engine
	hub            *live.Hub
	logger         *slog.Logger
}

func NewMatchService(
	txr repositories.Transactor,
	matchRepo repositories.MatchRepository,
	ratingRepo repositories.RatingRepository,
	tournamentRepo repositories.TournamentRepository,
	engine *rating.Engine,
	hub *live.Hub,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		txr:            txr,
		matchRepo:      matchRepo,
		ratingRepo:     ratingRepo,
		tournamentRepo: tournamentRepo,
		engine:         engine,
		hub:            hub,
		logger:         logger,
	}
}

// MatchEventPayload - полезная нагрузка событий живого канала.
type MatchEventPayload struct {
	EventID string          `json:"event_id"`
	Match   *models.Match   `json:"match"`
	Ratings []models.Rating `json:"ratings,omitempty"`
}

func (s *MatchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, storageErr(fmt.Errorf("failed to get match %d: %w", matchID, err))
	}
	return match, nil
}

func (s *MatchService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, nil)
}

// BeginReport переводит матч в in_progress от имени судьи или организатора.
func (s *MatchService) BeginReport(ctx context.Context, matchID int, actor models.Actor) (*models.Match, error) {
	match, tournament, err := s.loadMatchContext(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReporter(actor, match, tournament); err != nil {
		return nil, err
	}

	next, err := matches.Next(match.State, matches.EventBeginReport)
	if err != nil {
		return nil, ErrInvalidTransition
	}
	if next == match.State {
		// Уже in_progress - повторный beginReport безвреден.
		return match, nil
	}

	if err := s.matchRepo.UpdateState(ctx, nil, matchID, next, match.Version); err != nil {
		return nil, s.mapMatchRepoError(err)
	}
	match.State = next
	match.Version++

	s.emit(live.EventMatchInProgress, match, nil)
	return match, nil
}

// SubmitScore сохраняет счёт и переводит матч в reported. expectedVersion
// сверяется с сохранённой версией: при расхождении возвращается
// ErrVersionConflict и вызывающий должен перечитать матч и повторить.
func (s *MatchService) SubmitScore(ctx context.Context, matchID int, score models.Score, expectedVersion int, actor models.Actor) (*models.Match, error) {
	if err := validateScore(score); err != nil {
		return nil, err
	}

	match, tournament, err := s.loadMatchContext(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReporter(actor, match, tournament); err != nil {
		return nil, err
	}

	next, err := matches.Next(match.State, matches.EventSubmitScore)
	if err != nil {
		return nil, ErrInvalidTransition
	}

	if err := s.matchRepo.UpdateScoreState(ctx, nil, matchID, &score, next, expectedVersion); err != nil {
		return nil, s.mapMatchRepoError(err)
	}
	match.State = next
	match.Score = &score
	match.Version = expectedVersion + 1

	s.emit(live.EventScoreReported, match, nil)
	return match, nil
}

// Dispute открывает спор по зафиксированному счёту (reported -> disputed).
func (s *MatchService) Dispute(ctx context.Context, matchID, expectedVersion int, actor models.Actor) (*models.Match, error) {
	match, tournament, err := s.loadMatchContext(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReporter(actor, match, tournament); err != nil {
		return nil, err
	}

	next, err := matches.Next(match.State, matches.EventDispute)
	if err != nil {
		return nil, ErrInvalidTransition
	}

	if err := s.matchRepo.UpdateState(ctx, nil, matchID, next, expectedVersion); err != nil {
		return nil, s.mapMatchRepoError(err)
	}
	match.State = next
	match.Version = expectedVersion + 1

	s.emit(live.EventMatchDisputed, match, nil)
	return match, nil
}

// ReportAndFinalize - единая точка входа: фиксирует счёт, финализирует матч,
// пересчитывает рейтинги всех участников и публикует MATCH_FINALIZED.
// Переход состояния и запись рейтингов атомарны: либо фиксируется всё,
// либо ничего. Гарантия: не более одного обновления рейтинга на матч -
// повторный вызов для финализированного матча с тем же счётом ничего не
// меняет, с другим счётом возвращает конфликт.
func (s *MatchService) ReportAndFinalize(ctx context.Context, matchID int, score models.Score, actor models.Actor) (*models.Match, []models.Rating, error) {
	if err := validateScore(score); err != nil {
		return nil, nil, err
	}

	match, tournament, err := s.loadMatchContext(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizeReporter(actor, match, tournament); err != nil {
		return nil, nil, err
	}

	if matches.IsTerminal(match.State) {
		if match.Score != nil && match.Score.Equal(score) {
			// Идемпотентный повтор: ни новой истории, ни изменения рейтингов.
			return match, nil, nil
		}
		return nil, nil, ErrFinalizedScoreDiffer
	}

	needSubmit := true
	if match.State == models.MatchStateReported {
		if match.Score == nil || !match.Score.Equal(score) {
			// Исправление зафиксированного счёта идёт только через спор.
			return nil, nil, ErrInvalidTransition
		}
		needSubmit = false
	} else if !matches.CanSubmitScore(match.State) {
		return nil, nil, ErrInvalidTransition
	}

	updated := make([]models.Rating, 0, len(match.Players()))

	err = s.txr.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		version := match.Version

		if needSubmit {
			if err := s.matchRepo.UpdateScoreState(ctx, exec, matchID, &score, models.MatchStateReported, version); err != nil {
				return s.mapMatchRepoError(err)
			}
			version++
		}

		newRatings, err := s.applyRatingUpdates(ctx, exec, match, score)
		if err != nil {
			return err
		}
		updated = append(updated, newRatings...)

		if err := s.matchRepo.UpdateState(ctx, exec, matchID, models.MatchStateFinalized, version); err != nil {
			return s.mapMatchRepoError(err)
		}
		match.Version = version + 1
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	match.State = models.MatchStateFinalized
	match.Score = &score

	// Публикация после коммита: медленный подписчик не задерживает финализацию.
	s.emit(live.EventMatchFinalized, match, updated)

	s.logger.Info("match finalized",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.Int("ratings_updated", len(updated)),
	)
	return match, updated, nil
}

// applyRatingUpdates пересчитывает и сохраняет рейтинги участников внутри
// транзакции финализации. Строки рейтингов блокируются FOR UPDATE, поэтому
// две одновременные финализации с общим игроком сериализуются на уровне БД.
func (s *MatchService) applyRatingUpdates(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, score models.Score) ([]models.Rating, error) {
	players := match.Players()
	locked, err := s.ratingRepo.GetForUpdate(ctx, exec, players)
	if err != nil {
		return nil, storageErr(fmt.Errorf("failed to lock participant ratings: %w", err))
	}

	current := func(playerID int) rating.Rating {
		if row, ok := locked[playerID]; ok {
			return rating.Rating{Mu: row.Mu, Sigma: row.Sigma}
		}
		return s.engine.Default()
	}

	side1 := make([]rating.Rating, len(match.Side1Players))
	for i, id := range match.Side1Players {
		side1[i] = current(id)
	}
	side2 := make([]rating.Rating, len(match.Side2Players))
	for i, id := range match.Side2Players {
		side2[i] = current(id)
	}

	outcome := outcomeFromScore(score)
	new1, new2 := s.engine.TeamUpdate(outcome, side1, side2)

	now := time.Now().UTC()
	updated := make([]models.Rating, 0, len(players))

	persist := func(playerID int, before, after rating.Rating) error {
		entry := &models.RatingHistoryEntry{
			PlayerID: playerID,
			MatchID:  match.ID,
			OldMu:    before.Mu,
			OldSigma: before.Sigma,
			NewMu:    after.Mu,
			NewSigma: after.Sigma,
		}
		inserted, err := s.ratingRepo.InsertHistory(ctx, exec, entry)
		if err != nil {
			return storageErr(fmt.Errorf("failed to append rating history: %w", err))
		}
		if !inserted {
			// Запись уже есть - рейтинг за этот матч уже применён.
			return nil
		}
		row := &models.Rating{PlayerID: playerID, Mu: after.Mu, Sigma: after.Sigma, LastUpdated: now}
		if err := s.ratingRepo.Upsert(ctx, exec, row); err != nil {
			return storageErr(fmt.Errorf("failed to upsert rating: %w", err))
		}
		updated = append(updated, *row)
		return nil
	}

	for i, id := range match.Side1Players {
		if err := persist(id, side1[i], new1[i]); err != nil {
			return nil, err
		}
	}
	for i, id := range match.Side2Players {
		if err := persist(id, side2[i], new2[i]); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// loadMatchContext загружает матч и его турнир.
func (s *MatchService) loadMatchContext(ctx context.Context, matchID int) (*models.Match, *models.Tournament, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, nil, ErrMatchNotFound
		}
		return nil, nil, storageErr(fmt.Errorf("failed to load match %d: %w", matchID, err))
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, match.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, nil, ErrTournamentNotFound
		}
		return nil, nil, storageErr(fmt.Errorf("failed to load tournament %d: %w", match.TournamentID, err))
	}
	return match, tournament, nil
}

// authorizeReporter: счёт подают организатор турнира или назначенный судья.
func (s *MatchService) authorizeReporter(actor models.Actor, match *models.Match, tournament *models.Tournament) error {
	if actor.IsAdmin() {
		return nil
	}
	if tournament.HostID == actor.UserID {
		return nil
	}
	if match.RefereeID != nil && *match.RefereeID == actor.UserID {
		return nil
	}
	return ErrNotAuthorized
}

func (s *MatchService) emit(eventType string, match *models.Match, ratings []models.Rating) {
	payload := MatchEventPayload{
		EventID: uuid.NewString(),
		Match:   match,
		Ratings: ratings,
	}
	s.hub.Publish(live.Message{
		Type:    eventType,
		Payload: payload,
		Scope:   live.TournamentScope(match.TournamentID),
	})
	s.hub.Publish(live.Message{
		Type:    eventType,
		Payload: payload,
		Scope:   live.MatchScope(match.TournamentID, match.ID),
	})
}

func (s *MatchService) mapMatchRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrMatchVersionConflict):
		return ErrVersionConflict
	default:
		return storageErr(err)
	}
}

func validateScore(score models.Score) error {
	if len(score.Sets) == 0 {
		return ErrScoreRequired
	}
	for _, set := range score.Sets {
		if set.Side1 < 0 || set.Side2 < 0 {
			return ErrScoreInvalid
		}
	}
	return nil
}

func outcomeFromScore(score models.Score) rating.Outcome {
	switch score.Winner() {
	case 1:
		return rating.OutcomeSide1Win
	case 2:
		return rating.OutcomeSide2Win
	default:
		return rating.OutcomeDraw
	}
}
