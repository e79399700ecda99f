package models

import "time"

// MatchState представляет состояния матча, соответствующие ENUM в БД.
type MatchState string

const (
	MatchStateScheduled  MatchState = "scheduled"
	MatchStateInProgress MatchState = "in_progress"
	MatchStateReported   MatchState = "reported"
	MatchStateFinalized  MatchState = "finalized"
	MatchStateDisputed   MatchState = "disputed"
)

// SetScore - счёт одного сета/партии.
type SetScore struct {
	Side1 int `json:"side1"`
	Side2 int `json:"side2"`
}

// Score - структурированный результат матча по сетам.
type Score struct {
	Sets []SetScore `json:"sets"`
}

// Winner возвращает 1 или 2 по числу выигранных сетов, 0 при ничьей.
func (s Score) Winner() int {
	var wins1, wins2 int
	for _, set := range s.Sets {
		switch {
		case set.Side1 > set.Side2:
			wins1++
		case set.Side2 > set.Side1:
			wins2++
		}
	}
	switch {
	case wins1 > wins2:
		return 1
	case wins2 > wins1:
		return 2
	default:
		return 0
	}
}

func (s Score) Equal(other Score) bool {
	if len(s.Sets) != len(other.Sets) {
		return false
	}
	for i := range s.Sets {
		if s.Sets[i] != other.Sets[i] {
			return false
		}
	}
	return true
}

// Match создаётся внешним генератором сетки; ядро меняет только
// state/score/version через машину состояний. version - монотонный счётчик
// для оптимистичной конкуренции: каждое успешное изменение инкрементирует его.
type Match struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Round        int        `json:"round" db:"round"`
	Side1Players []int      `json:"side1_players" db:"side1_players"`
	Side2Players []int      `json:"side2_players" db:"side2_players"`
	RefereeID    *int       `json:"referee_id,omitempty" db:"referee_id"`
	CourtID      *int       `json:"court_id,omitempty" db:"court_id"`
	State        MatchState `json:"state" db:"state"`
	Score        *Score     `json:"score,omitempty" db:"score"`
	Version      int        `json:"version" db:"version"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Players возвращает всех участников матча в порядке сторон.
func (m *Match) Players() []int {
	out := make([]int, 0, len(m.Side1Players)+len(m.Side2Players))
	out = append(out, m.Side1Players...)
	out = append(out, m.Side2Players...)
	return out
}
