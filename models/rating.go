package models

import "time"

// Rating - текущая оценка силы игрока: среднее mu и неопределённость sigma.
// Строка создаётся лениво при первой финализации матча игрока; до этого
// игрок получает прайор на уровне сервиса.
type Rating struct {
	PlayerID    int       `json:"player_id" db:"player_id"`
	Mu          float64   `json:"mu" db:"mu"`
	Sigma       float64   `json:"sigma" db:"sigma"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// RatingHistoryEntry - запись аудита одного применения рейтинга.
// Уникальность (player_id, match_id) гарантирует не более одного
// обновления рейтинга на игрока за матч. Match и Tournament заполняются
// при чтении истории для отдачи наружу.
type RatingHistoryEntry struct {
	ID        int       `json:"id" db:"id"`
	PlayerID  int       `json:"player_id" db:"player_id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	OldMu     float64   `json:"old_mu" db:"old_mu"`
	OldSigma  float64   `json:"old_sigma" db:"old_sigma"`
	NewMu     float64   `json:"new_mu" db:"new_mu"`
	NewSigma  float64   `json:"new_sigma" db:"new_sigma"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Match      *Match      `json:"match,omitempty" db:"-"`
	Tournament *Tournament `json:"tournament,omitempty" db:"-"`
}

// LeaderboardEntry - строка таблицы лидеров, отсортированной по mu.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	PlayerID int     `json:"player_id"`
	Mu       float64 `json:"mu"`
	Sigma    float64 `json:"sigma"`
}
