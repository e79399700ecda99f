package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusSoon         TournamentStatus = "soon"
	StatusRegistration TournamentStatus = "registration"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

// Tournament - read-модель турнира. Ядро не создаёт и не изменяет турниры,
// только читает capacity/host для проверок регистрации и авторизации.
// Единственное исключение - archive_key, который проставляет экспортёр
// истории рейтингов.
type Tournament struct {
	ID         int              `json:"id" db:"id"`
	Name       string           `json:"name" db:"name"`
	HostID     int              `json:"host_id" db:"host_id"`
	Capacity   int              `json:"capacity" db:"capacity"`
	Status     TournamentStatus `json:"status" db:"status"`
	ArchiveKey *string          `json:"-" db:"archive_key"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}
