package fitness

import (
	"fmt"
	"math"
)

// TickState is the per-tick view of one agent used for reward shaping.
type TickState struct {
	Distance       float64
	FacingOpponent bool
	Attacking      bool
	X              float64
	ArenaWidth     float64
	Speed          float64
	OpponentAlive  bool
}

// MatchSummary captures the terminal facts of one finished match.
type MatchSummary struct {
	DamageDealt1 float64
	DamageDealt2 float64
	Health1      float64
	Health2      float64
	Knockout     bool
	TimedOut     bool
	// Winner is 1 or 2, or 0 for a draw.
	Winner int
}

// MatchScore is the end-of-match fitness contribution per agent.
type MatchScore struct {
	Fitness1 float64
	Fitness2 float64
	Won1     bool
	Won2     bool
}

// Evaluator applies per-tick shaping and match-end scoring. All coefficients
// come from the Config; the evaluator holds no tuning constants of its own.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("evaluator config: %w", err)
	}
	return &Evaluator{cfg: cfg}, nil
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

// TickReward shapes learning while the opponent is alive; once the opponent
// is down there is nothing left to reward or punish.
func (e *Evaluator) TickReward(s TickState) float64 {
	if !s.OpponentAlive {
		return 0
	}

	reward := -e.cfg.TimePenalty

	switch {
	case s.Distance <= e.cfg.CloseRange:
		reward += e.cfg.CloseReward
	case s.Distance <= e.cfg.MidRange:
		reward += e.cfg.MidReward
	case s.Distance <= e.cfg.FarRange:
		reward += e.cfg.FarReward
	}

	if s.FacingOpponent {
		reward += e.cfg.FacingReward
	}
	if s.Attacking && s.Distance <= e.cfg.AggressionRange {
		reward += e.cfg.AggressionReward
	}

	if s.X < e.cfg.EdgeZone || s.X > s.ArenaWidth-e.cfg.EdgeZone {
		reward -= e.cfg.EdgePenalty
	}
	if math.Abs(s.X-s.ArenaWidth/2) <= e.cfg.CenterZone {
		reward += e.cfg.CenterBonus
	}
	if s.Speed >= e.cfg.MovementMinSpeed {
		reward += e.cfg.MovementReward
	}

	return reward
}

// Score computes end-of-match fitness: damage dealt and remaining health,
// a knockout or (smaller) timeout-win bonus for the winner, and a stalemate
// penalty for both sides when a timeout produced almost no damage.
func (e *Evaluator) Score(s MatchSummary) MatchScore {
	out := MatchScore{
		Fitness1: s.DamageDealt1*e.cfg.DamageMultiplier + s.Health1*e.cfg.HealthMultiplier,
		Fitness2: s.DamageDealt2*e.cfg.DamageMultiplier + s.Health2*e.cfg.HealthMultiplier,
		Won1:     s.Winner == 1,
		Won2:     s.Winner == 2,
	}

	winBonus := e.cfg.TimeoutWinBonus
	if s.Knockout {
		winBonus = e.cfg.KnockoutBonus
	}
	if out.Won1 {
		out.Fitness1 += winBonus
	}
	if out.Won2 {
		out.Fitness2 += winBonus
	}

	if s.TimedOut && s.DamageDealt1+s.DamageDealt2 < e.cfg.StalemateDamageThreshold {
		out.Fitness1 -= e.cfg.StalematePenalty
		out.Fitness2 -= e.cfg.StalematePenalty
	}

	return out
}
