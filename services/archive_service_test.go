package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Dosada05/rating-system/models"
)

func TestArchiveCompletedTournaments(t *testing.T) {
	completed := &models.Tournament{ID: 1, Name: "finished cup", HostID: testHostID, Capacity: 8, Status: models.StatusCompleted}
	active := &models.Tournament{ID: 2, Name: "running cup", HostID: testHostID, Capacity: 8, Status: models.StatusActive}
	tournamentRepo := newMemTournamentRepo(completed, active)

	ratingRepo := newMemRatingRepo()
	if _, err := ratingRepo.InsertHistory(context.Background(), nil, &models.RatingHistoryEntry{
		PlayerID: 11, MatchID: 10, OldMu: 1500, OldSigma: 200, NewMu: 1516, NewSigma: 180,
	}); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	uploader := newMemUploader()
	svc := NewArchiveService(tournamentRepo, ratingRepo, uploader, testLogger())

	if err := svc.ArchiveCompletedTournaments(context.Background()); err != nil {
		t.Fatalf("ArchiveCompletedTournaments: %v", err)
	}

	key := "archives/tournaments/1/rating-history.json"
	body, ok := uploader.uploads[key]
	if !ok {
		t.Fatalf("archive object %s not uploaded", key)
	}
	var doc struct {
		Tournament *models.Tournament           `json:"tournament"`
		Entries    []*models.RatingHistoryEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal archive: %v", err)
	}
	if doc.Tournament == nil || doc.Tournament.ID != 1 {
		t.Errorf("archive should carry tournament 1, got %+v", doc.Tournament)
	}
	if len(doc.Entries) != 1 {
		t.Errorf("got %d entries, want 1", len(doc.Entries))
	}

	stored, err := tournamentRepo.GetByID(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if stored.ArchiveKey == nil || *stored.ArchiveKey != key {
		t.Errorf("archive key not recorded, got %v", stored.ArchiveKey)
	}

	// Активный турнир не трогаем.
	if _, ok := uploader.uploads["archives/tournaments/2/rating-history.json"]; ok {
		t.Error("active tournament must not be archived")
	}

	// Повторный запуск ничего не перезаливает: ключ уже проставлен.
	uploader.uploads = make(map[string][]byte)
	if err := svc.ArchiveCompletedTournaments(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(uploader.uploads) != 0 {
		t.Errorf("second run re-uploaded %d objects", len(uploader.uploads))
	}
}

func TestArchiveUploadFailureDoesNotMarkTournament(t *testing.T) {
	completed := &models.Tournament{ID: 1, Name: "finished cup", HostID: testHostID, Capacity: 8, Status: models.StatusCompleted}
	tournamentRepo := newMemTournamentRepo(completed)
	uploader := newMemUploader()
	uploader.failing = true

	svc := NewArchiveService(tournamentRepo, newMemRatingRepo(), uploader, testLogger())

	// Неудача загрузки логируется, батч завершается без ошибки.
	if err := svc.ArchiveCompletedTournaments(context.Background()); err != nil {
		t.Fatalf("batch should swallow per-tournament failures, got %v", err)
	}
	stored, _ := tournamentRepo.GetByID(context.Background(), nil, 1)
	if stored.ArchiveKey != nil {
		t.Error("failed upload must not record an archive key")
	}

	// После восстановления хранилища турнир архивируется при следующем запуске.
	uploader.failing = false
	if err := svc.ArchiveCompletedTournaments(context.Background()); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	stored, _ = tournamentRepo.GetByID(context.Background(), nil, 1)
	if stored.ArchiveKey == nil {
		t.Error("archive key should be recorded after retry")
	}
}
