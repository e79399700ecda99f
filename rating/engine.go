// Package rating implements the Bayesian pairwise skill update applied when
// a match is finalized.
//
// The update is a single-game Glicko-style step with a logistic link: the
// expected score of side A is
//
//	E = 1 / (1 + 10^(-g*(muA-muB)/400))
//
// where g is the Glicko weighting factor computed over the COMBINED
// uncertainty sqrt(sigmaA^2 + sigmaB^2). Using the combined deviation for
// both sides (instead of each opponent's own, as in the original paper)
// makes E_B = 1 - E_A hold exactly, so a draw is treated symmetrically.
//
// Every update shrinks both deviations and never lets them fall below
// SigmaFloor. The functions here are pure: no I/O, no hidden state, always
// a result for any valid outcome.
package rating

import "math"

// Outcome of a match from side 1's perspective.
type Outcome int

const (
	OutcomeDraw Outcome = iota
	OutcomeSide1Win
	OutcomeSide2Win
)

// Rating is a player's (or an aggregated team's) skill estimate.
type Rating struct {
	Mu    float64
	Sigma float64
}

type Config struct {
	InitialMu    float64 // prior mean for never-seen players
	InitialSigma float64 // prior uncertainty
	SigmaFloor   float64 // deviations never shrink below this
}

func DefaultConfig() Config {
	return Config{
		InitialMu:    1500,
		InitialSigma: 200,
		SigmaFloor:   30,
	}
}

const q = math.Ln10 / 400

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.InitialMu == 0 && cfg.InitialSigma == 0 && cfg.SigmaFloor == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// Default returns the prior rating assigned to a never-before-seen player.
func (e *Engine) Default() Rating {
	return Rating{Mu: e.cfg.InitialMu, Sigma: e.cfg.InitialSigma}
}

// SigmaFloor exposes the configured minimum uncertainty.
func (e *Engine) SigmaFloor() float64 {
	return e.cfg.SigmaFloor
}

// ComputeUpdate returns the post-match ratings for both sides. The shift is
// proportional to the surprise of the outcome and to each side's own
// uncertainty; deviations only ever shrink, down to the configured floor.
func (e *Engine) ComputeUpdate(outcome Outcome, a, b Rating) (Rating, Rating) {
	a = e.sanitize(a)
	b = e.sanitize(b)

	scoreA := 0.5
	switch outcome {
	case OutcomeSide1Win:
		scoreA = 1
	case OutcomeSide2Win:
		scoreA = 0
	}
	scoreB := 1 - scoreA

	combined := math.Sqrt(a.Sigma*a.Sigma + b.Sigma*b.Sigma)
	g := glickoG(combined)
	expectedA := 1 / (1 + math.Pow(10, -g*(a.Mu-b.Mu)/400))
	expectedB := 1 - expectedA

	newA := e.applyStep(a, g, scoreA, expectedA)
	newB := e.applyStep(b, g, scoreB, expectedB)
	return newA, newB
}

// TeamUpdate aggregates each side to the arithmetic mean of its members'
// means and deviations, computes the pairwise update on the aggregates, and
// applies the team-level mu delta in full to every member. Member deviations
// shrink by the team-level decay ratio, clamped to the floor.
func (e *Engine) TeamUpdate(outcome Outcome, side1, side2 []Rating) ([]Rating, []Rating) {
	agg1 := e.aggregate(side1)
	agg2 := e.aggregate(side2)

	new1, new2 := e.ComputeUpdate(outcome, agg1, agg2)

	return e.distribute(side1, agg1, new1), e.distribute(side2, agg2, new2)
}

func (e *Engine) applyStep(r Rating, g, score, expected float64) Rating {
	// Glicko step 2: d^2 from the single outcome, then shrink the deviation.
	dSquared := 1 / (q * q * g * g * expected * (1 - expected))
	newVariance := 1 / (1/(r.Sigma*r.Sigma) + 1/dSquared)
	newSigma := math.Max(math.Sqrt(newVariance), e.cfg.SigmaFloor)

	newMu := r.Mu + q*newVariance*g*(score-expected)
	return Rating{Mu: newMu, Sigma: newSigma}
}

func (e *Engine) aggregate(members []Rating) Rating {
	if len(members) == 0 {
		return e.Default()
	}
	var sumMu, sumSigma float64
	for _, m := range members {
		s := e.sanitize(m)
		sumMu += s.Mu
		sumSigma += s.Sigma
	}
	n := float64(len(members))
	return Rating{Mu: sumMu / n, Sigma: sumSigma / n}
}

func (e *Engine) distribute(members []Rating, old, updated Rating) []Rating {
	delta := updated.Mu - old.Mu
	decay := 1.0
	if old.Sigma > 0 {
		decay = updated.Sigma / old.Sigma
	}
	out := make([]Rating, len(members))
	for i, m := range members {
		s := e.sanitize(m)
		out[i] = Rating{
			Mu:    s.Mu + delta,
			Sigma: math.Max(s.Sigma*decay, e.cfg.SigmaFloor),
		}
	}
	return out
}

// sanitize clamps degenerate inputs so the engine stays total; invalid
// sigmas are rejected as validation errors before reaching the engine.
func (e *Engine) sanitize(r Rating) Rating {
	if r.Sigma < e.cfg.SigmaFloor {
		r.Sigma = e.cfg.SigmaFloor
	}
	return r
}

func glickoG(sigma float64) float64 {
	return 1 / math.Sqrt(1+3*q*q*sigma*sigma/(math.Pi*math.Pi))
}
