// Package matches holds the pure lifecycle rules for a single match:
// scheduled -> in_progress -> reported -> finalized, with a
// reported <-> disputed side loop for corrections. finalized is terminal.
// The package decides which transitions are legal; persistence and the
// optimistic version check live in the repository layer.
package matches

import (
	"errors"

	"github.com/Dosada05/rating-system/models"
)

var ErrInvalidTransition = errors.New("invalid match state transition")

// Event - событие жизненного цикла матча.
type Event string

const (
	EventBeginReport Event = "begin_report"
	EventSubmitScore Event = "submit_score"
	EventFinalize    Event = "finalize"
	EventDispute     Event = "dispute"
)

var transitions = map[models.MatchState]map[Event]models.MatchState{
	models.MatchStateScheduled: {
		EventBeginReport: models.MatchStateInProgress,
		EventSubmitScore: models.MatchStateReported,
	},
	models.MatchStateInProgress: {
		EventBeginReport: models.MatchStateInProgress,
		EventSubmitScore: models.MatchStateReported,
	},
	models.MatchStateReported: {
		EventFinalize: models.MatchStateFinalized,
		EventDispute:  models.MatchStateDisputed,
	},
	models.MatchStateDisputed: {
		// Корректировка счёта возвращает матч в reported.
		EventSubmitScore: models.MatchStateReported,
	},
}

// Next возвращает следующее состояние для события или ErrInvalidTransition.
func Next(current models.MatchState, event Event) (models.MatchState, error) {
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return current, ErrInvalidTransition
}

// IsTerminal - finalized не допускает дальнейших изменений.
func IsTerminal(state models.MatchState) bool {
	return state == models.MatchStateFinalized
}

func CanBeginReport(state models.MatchState) bool {
	_, err := Next(state, EventBeginReport)
	return err == nil
}

func CanSubmitScore(state models.MatchState) bool {
	_, err := Next(state, EventSubmitScore)
	return err == nil
}

func CanFinalize(state models.MatchState) bool {
	_, err := Next(state, EventFinalize)
	return err == nil
}

func CanDispute(state models.MatchState) bool {
	_, err := Next(state, EventDispute)
	return err == nil
}
