package models

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

// Actor - проверенная пара (userId, playerId) из внешнего сервиса
// аутентификации. Прикрепляется middleware к каждому запросу и используется
// для всех проверок авторизации в ядре.
type Actor struct {
	UserID   int      `json:"user_id"`
	PlayerID int      `json:"player_id"`
	Role     UserRole `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
