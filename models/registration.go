package models

import "time"

type Registration struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	PlayerID     int       `json:"player_id" db:"player_id"`
	TxnID        *string   `json:"txn_id,omitempty" db:"txn_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
