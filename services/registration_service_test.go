package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/rating-system/models"
)

func newRegistrationFixture(capacity int, status models.TournamentStatus) (*RegistrationService, *memRegistrationRepo) {
	regRepo := newMemRegistrationRepo()
	tournamentRepo := newMemTournamentRepo(&models.Tournament{
		ID:       1,
		Name:     "spring cup",
		HostID:   testHostID,
		Capacity: capacity,
		Status:   status,
	})
	svc := NewRegistrationService(&memTransactor{}, regRepo, tournamentRepo)
	return svc, regRepo
}

func TestRegisterHappyPath(t *testing.T) {
	svc, _ := newRegistrationFixture(8, models.StatusRegistration)

	reg, err := svc.Register(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.ID == 0 {
		t.Error("registration should get an id")
	}
	if reg.TournamentID != 1 || reg.PlayerID != 42 {
		t.Errorf("unexpected registration: %+v", reg)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newRegistrationFixture(8, models.StatusRegistration)
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1, 42); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := svc.Register(ctx, 1, 42); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("want ErrAlreadyRegistered, got %v", err)
	}
}

// Игрок, уже занимающий место в заполненном турнире, при повторе получает
// AlreadyRegistered, а не TournamentFull.
func TestRegisterDuplicateInFullTournament(t *testing.T) {
	svc, _ := newRegistrationFixture(1, models.StatusRegistration)
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1, 42); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := svc.Register(ctx, 1, 42); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("retry by registered player: want ErrAlreadyRegistered, got %v", err)
	}
	// Новый игрок упирается во вместимость.
	if _, err := svc.Register(ctx, 1, 43); !errors.Is(err, ErrTournamentFull) {
		t.Errorf("new player: want ErrTournamentFull, got %v", err)
	}
}

func TestRegisterClosedTournament(t *testing.T) {
	for _, status := range []models.TournamentStatus{models.StatusCompleted, models.StatusCanceled} {
		svc, _ := newRegistrationFixture(8, status)
		if _, err := svc.Register(context.Background(), 1, 42); !errors.Is(err, ErrRegistrationClosed) {
			t.Errorf("status %s: want ErrRegistrationClosed, got %v", status, err)
		}
	}
}

func TestRegisterUnknownTournament(t *testing.T) {
	svc, _ := newRegistrationFixture(8, models.StatusRegistration)
	if _, err := svc.Register(context.Background(), 77, 42); !errors.Is(err, ErrTournamentNotFound) {
		t.Errorf("want ErrTournamentNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newRegistrationFixture(8, models.StatusRegistration)
	ctx := context.Background()
	if _, err := svc.Register(ctx, 0, 42); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("zero tournament: want ErrValidationFailed, got %v", err)
	}
	if _, err := svc.Register(ctx, 1, -5); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("negative player: want ErrValidationFailed, got %v", err)
	}
}

// Гонка за последние места: при вместимости K и N > K конкурентных заявок
// проходят ровно K, остальные получают ErrTournamentFull.
func TestRegisterConcurrentCapacity(t *testing.T) {
	const capacity = 5
	const players = 20

	svc, regRepo := newRegistrationFixture(capacity, models.StatusRegistration)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, players)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, 1, i+1)
		}(i)
	}
	wg.Wait()

	var succeeded, full int
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrTournamentFull):
			full++
		default:
			t.Errorf("player %d: unexpected error %v", i+1, err)
		}
	}
	if succeeded != capacity {
		t.Errorf("got %d successful registrations, want %d", succeeded, capacity)
	}
	if full != players-capacity {
		t.Errorf("got %d ErrTournamentFull, want %d", full, players-capacity)
	}

	count, err := regRepo.CountByTournament(ctx, nil, 1)
	if err != nil {
		t.Fatalf("CountByTournament: %v", err)
	}
	if count != capacity {
		t.Errorf("stored %d registrations, want %d", count, capacity)
	}
}

func TestUnregister(t *testing.T) {
	svc, _ := newRegistrationFixture(8, models.StatusRegistration)
	ctx := context.Background()

	reg, err := svc.Register(ctx, 1, 42)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	owner := models.Actor{UserID: 42, PlayerID: 42, Role: models.RolePlayer}
	stranger := models.Actor{UserID: 7, PlayerID: 7, Role: models.RolePlayer}

	if err := svc.Unregister(ctx, reg.ID, stranger); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger: want ErrNotAuthorized, got %v", err)
	}
	if err := svc.Unregister(ctx, reg.ID, owner); err != nil {
		t.Errorf("owner: %v", err)
	}
	if err := svc.Unregister(ctx, reg.ID, owner); !errors.Is(err, ErrRegistrationNotFound) {
		t.Errorf("repeat: want ErrRegistrationNotFound, got %v", err)
	}

	// Администратор может снять чужую регистрацию.
	reg2, err := svc.Register(ctx, 1, 43)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Unregister(ctx, reg2.ID, adminActor()); err != nil {
		t.Errorf("admin: %v", err)
	}
}

func TestListByTournament(t *testing.T) {
	svc, _ := newRegistrationFixture(8, models.StatusRegistration)
	ctx := context.Background()

	for _, player := range []int{42, 43, 44} {
		if _, err := svc.Register(ctx, 1, player); err != nil {
			t.Fatalf("Register %d: %v", player, err)
		}
	}
	regs, err := svc.ListByTournament(ctx, 1)
	if err != nil {
		t.Fatalf("ListByTournament: %v", err)
	}
	if len(regs) != 3 {
		t.Errorf("got %d registrations, want 3", len(regs))
	}
}
