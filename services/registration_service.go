package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/rating-system/models"
	"github.com/Dosada05/rating-system/repositories"
)

// RegistrationService - реестр регистраций: вместимость турнира и
// уникальность (tournament_id, player_id) под конкурентными заявками.
type RegistrationService struct {
	txr            repositories.Transactor
	regRepo        repositories.RegistrationRepository
	tournamentRepo repositories.TournamentRepository
}

func NewRegistrationService(
	txr repositories.Transactor,
	regRepo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
) *RegistrationService {
	return &RegistrationService{
		txr:            txr,
		regRepo:        regRepo,
		tournamentRepo: tournamentRepo,
	}
}

// Register регистрирует игрока. Проверка существования, проверка
// вместимости и вставка выполняются в одной транзакции со строчной
// блокировкой турнира: из гонки за последнее место выигрывает ровно один,
// остальные получают ErrTournamentFull.
func (s *RegistrationService) Register(ctx context.Context, tournamentID, playerID int) (*models.Registration, error) {
	if tournamentID <= 0 || playerID <= 0 {
		return nil, ErrValidationFailed
	}

	reg := &models.Registration{
		TournamentID: tournamentID,
		PlayerID:     playerID,
	}

	err := s.txr.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return storageErr(fmt.Errorf("failed to load tournament for registration: %w", err))
		}

		// Существование проверяется до вместимости: игрок, уже занимающий
		// место, при повторе получает AlreadyRegistered, а не TournamentFull.
		exists, err := s.regRepo.Exists(ctx, exec, tournamentID, playerID)
		if err != nil {
			return storageErr(fmt.Errorf("failed to check existing registration: %w", err))
		}
		if exists {
			return ErrAlreadyRegistered
		}

		if tournament.Status == models.StatusCompleted || tournament.Status == models.StatusCanceled {
			return ErrRegistrationClosed
		}

		count, err := s.regRepo.CountByTournament(ctx, exec, tournamentID)
		if err != nil {
			return storageErr(fmt.Errorf("failed to count registrations: %w", err))
		}
		if count >= tournament.Capacity {
			return ErrTournamentFull
		}

		if err := s.regRepo.Create(ctx, exec, reg); err != nil {
			if errors.Is(err, repositories.ErrRegistrationConflict) {
				return ErrAlreadyRegistered
			}
			return storageErr(fmt.Errorf("failed to create registration: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Unregister снимает регистрацию. Разрешено только владеющему игроку
// (или администратору).
func (s *RegistrationService) Unregister(ctx context.Context, registrationID int, actor models.Actor) error {
	reg, err := s.regRepo.FindByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return storageErr(fmt.Errorf("failed to find registration: %w", err))
	}

	if reg.PlayerID != actor.PlayerID && !actor.IsAdmin() {
		return ErrNotAuthorized
	}

	if err := s.regRepo.Delete(ctx, registrationID); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return storageErr(fmt.Errorf("failed to delete registration: %w", err))
	}
	return nil
}

func (s *RegistrationService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Registration, error) {
	return s.regRepo.ListByTournament(ctx, tournamentID)
}
