package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/rating-system/models"
	"github.com/Dosada05/rating-system/rating"
	"github.com/Dosada05/rating-system/repositories"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHistoryLimit    = 50
	maxLeaderboardLimit    = 100
	defaultLeaderboardSize = 20
)

// RatingService - read-API поверх хранилища рейтингов: текущий рейтинг,
// история с контекстом матчей и таблица лидеров.
type RatingService struct {
	ratingRepo repositories.RatingRepository
	engine     *rating.Engine
}

func NewRatingService(ratingRepo repositories.RatingRepository, engine *rating.Engine) *RatingService {
	return &RatingService{
		ratingRepo: ratingRepo,
		engine:     engine,
	}
}

// PlayerRatingView - текущий рейтинг вместе с последней историей.
type PlayerRatingView struct {
	Rating  models.Rating                `json:"rating"`
	History []*models.RatingHistoryEntry `json:"history,omitempty"`
	// Provisional - у игрока ещё нет сыгранных матчей, показан прайор.
	Provisional bool `json:"provisional"`
}

// GetPlayerRating возвращает текущий рейтинг игрока. Для игрока без истории
// возвращается прайор (mu0, sigma0), помеченный как предварительный.
func (s *RatingService) GetPlayerRating(ctx context.Context, playerID int) (*PlayerRatingView, error) {
	if playerID <= 0 {
		return nil, ErrValidationFailed
	}

	row, err := s.ratingRepo.GetByPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrRatingNotFound) {
			prior := s.engine.Default()
			return &PlayerRatingView{
				Rating:      models.Rating{PlayerID: playerID, Mu: prior.Mu, Sigma: prior.Sigma},
				Provisional: true,
			}, nil
		}
		return nil, storageErr(fmt.Errorf("failed to get player rating: %w", err))
	}
	return &PlayerRatingView{Rating: *row}, nil
}

// GetPlayerHistory возвращает рейтинг и историю изменений одним ответом;
// обе выборки выполняются параллельно.
func (s *RatingService) GetPlayerHistory(ctx context.Context, playerID, limit int) (*PlayerRatingView, error) {
	if playerID <= 0 {
		return nil, ErrValidationFailed
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	var view *PlayerRatingView
	var history []*models.RatingHistoryEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.GetPlayerRating(gctx, playerID)
		if err != nil {
			return err
		}
		view = v
		return nil
	})
	g.Go(func() error {
		entries, err := s.ratingRepo.ListHistoryByPlayer(gctx, playerID, limit)
		if err != nil {
			return storageErr(fmt.Errorf("failed to list rating history: %w", err))
		}
		history = entries
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view.History = history
	return view, nil
}

// Leaderboard возвращает верх таблицы лидеров по убыванию mu; limit
// ограничен сверху.
func (s *RatingService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	entries, err := s.ratingRepo.ListTop(ctx, limit)
	if err != nil {
		return nil, storageErr(fmt.Errorf("failed to load leaderboard: %w", err))
	}
	return entries, nil
}
