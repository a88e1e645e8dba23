package arena

import (
	"fmt"
	"math"

	"neuroarena/internal/fitness"
	"neuroarena/internal/model"
)

// MatchConfig describes one two-agent match. Spawns are clamped to the arena;
// fighters start facing each other.
type MatchConfig struct {
	Source1   DecisionSource
	Source2   DecisionSource
	Spawn1X   float64
	Spawn2X   float64
	MaxTicks  int
	Evaluator *fitness.Evaluator
}

// Match is a deterministic fixed-timestep simulation of two fighters. Given
// identical sources and spawns, two runs produce identical outcomes.
type Match struct {
	f1, f2 *fighter
	eval   *fitness.Evaluator

	maxTicks int
	tick     int
	over     bool

	shaping1 float64
	shaping2 float64

	last1, last2 ActionFlags
}

func NewMatch(cfg MatchConfig) (*Match, error) {
	if cfg.Source1 == nil || cfg.Source2 == nil {
		return nil, fmt.Errorf("both decision sources are required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = DefaultMatchTicks
	}

	spawn1 := clampSpawn(cfg.Spawn1X)
	spawn2 := clampSpawn(cfg.Spawn2X)

	facing1, facing2 := 1, -1
	if spawn2 < spawn1 {
		facing1, facing2 = -1, 1
	}

	return &Match{
		f1:       newFighter(spawn1, facing1, cfg.Source1),
		f2:       newFighter(spawn2, facing2, cfg.Source2),
		eval:     cfg.Evaluator,
		maxTicks: cfg.MaxTicks,
	}, nil
}

func clampSpawn(x float64) float64 {
	half := FighterWidth / 2
	if x < half {
		return half
	}
	if x > ArenaWidth-half {
		return ArenaWidth - half
	}
	return x
}

// Step advances the simulation one tick and reports whether the match is
// still running.
func (m *Match) Step() bool {
	if m.over {
		return false
	}
	m.tick++

	view1 := m.f1.view()
	view2 := m.f2.view()

	m.last1 = m.advance(m.f1, view1, view2)
	m.last2 = m.advance(m.f2, view2, view1)

	// Hit resolution is symmetric within a tick: both swings are checked
	// against the pre-integration poses.
	m.resolveHits(m.f1, m.f2)
	m.resolveHits(m.f2, m.f1)

	m.f1.integrate()
	m.f2.integrate()

	m.shaping1 += m.tickReward(m.f1, m.f2)
	m.shaping2 += m.tickReward(m.f2, m.f1)

	if !m.f1.alive() || !m.f2.alive() || m.tick >= m.maxTicks {
		m.over = true
	}
	return !m.over
}

// advance runs the decision and action phases for one fighter and returns the
// action applied this tick. The applied action was decided on the previous
// tick; a fresh decision is computed now for the next tick, keeping every
// controller on the same one-tick latency.
func (m *Match) advance(f *fighter, self, opponent FighterView) ActionFlags {
	if !f.alive() {
		return NeutralAction()
	}

	action := f.pending
	f.pending = safeDecide(f.source, self, opponent)

	f.regenerate()
	if f.cooldown > 0 {
		f.cooldown--
	}
	if f.cooldown <= lockThreshold {
		f.applyMovement(action)
	}
	f.tryAttack(action)

	return action
}

func (m *Match) resolveHits(attacker, defender *fighter) {
	if !attacker.alive() || !defender.alive() {
		return
	}
	hitbox, active := attacker.attackBox()
	if !active || !hitbox.overlaps(defender.bodyBox()) {
		return
	}
	attacker.hitLanded = true

	var damage float64
	switch attacker.state {
	case StatePunch:
		damage = punchDamage
	case StateKick:
		damage = kickDamage
	}

	// The defensive table only applies when the defender is oriented toward
	// the attacker; facing away always takes full damage.
	perfect := false
	if defenderFacing(defender, attacker) {
		switch defender.state {
		case StateBlock:
			if attacker.state == StatePunch {
				damage = 0
				perfect = true
			} else {
				damage *= 0.5
				defender.energy -= blockKickEnergyPenalty
				if defender.energy < 0 {
					defender.energy = 0
				}
			}
		case StateCrouch:
			if attacker.state == StateKick {
				damage = 0
				perfect = true
			} else {
				damage *= 0.5
			}
		}
	}

	if perfect {
		attacker.cooldown += stunExtension
		return
	}
	if damage <= 0 {
		return
	}

	defender.health -= damage
	attacker.damageDealt += damage

	dir := 1.0
	if defender.x < attacker.x {
		dir = -1
	}
	defender.vx = knockbackVX * dir
	defender.vy += knockbackVY

	if defender.health <= 0 {
		defender.health = 0
		defender.state = StateDead
	}
}

func defenderFacing(defender, attacker *fighter) bool {
	if attacker.x >= defender.x {
		return defender.facing > 0
	}
	return defender.facing < 0
}

func (m *Match) tickReward(f, opponent *fighter) float64 {
	if !f.alive() {
		return 0
	}
	return m.eval.TickReward(fitness.TickState{
		Distance:       math.Abs(f.x - opponent.x),
		FacingOpponent: defenderFacing(f, opponent),
		Attacking:      f.state == StatePunch || f.state == StateKick,
		X:              f.x,
		ArenaWidth:     ArenaWidth,
		Speed:          math.Abs(f.vx),
		OpponentAlive:  opponent.alive(),
	})
}

// Run drives the match to its terminal condition.
func (m *Match) Run() {
	for m.Step() {
	}
}

func (m *Match) Tick() int {
	return m.tick
}

func (m *Match) Over() bool {
	return m.over
}

// Views returns the current fighter snapshots, for observers such as the
// mirror trainer.
func (m *Match) Views() (FighterView, FighterView) {
	return m.f1.view(), m.f2.view()
}

// LastActions returns the actions applied on the most recent tick.
func (m *Match) LastActions() (ActionFlags, ActionFlags) {
	return m.last1, m.last2
}

// Summary reports the terminal facts of the match. Call after Run or once
// Step returns false.
func (m *Match) Summary() fitness.MatchSummary {
	knockout := !m.f1.alive() || !m.f2.alive()
	timedOut := !knockout && m.tick >= m.maxTicks

	winner := 0
	switch {
	case m.f1.alive() && !m.f2.alive():
		winner = 1
	case m.f2.alive() && !m.f1.alive():
		winner = 2
	case timedOut && m.f1.health > m.f2.health:
		winner = 1
	case timedOut && m.f2.health > m.f1.health:
		winner = 2
	}

	return fitness.MatchSummary{
		DamageDealt1: m.f1.damageDealt,
		DamageDealt2: m.f2.damageDealt,
		Health1:      m.f1.health,
		Health2:      m.f2.health,
		Knockout:     knockout,
		TimedOut:     timedOut,
		Winner:       winner,
	}
}

// RunMatch executes one job to completion inside an execution unit. Total
// fitness per side is accumulated per-tick shaping plus the match-end score.
func RunMatch(job model.MatchJob, eval *fitness.Evaluator, maxTicks int) (model.MatchResult, error) {
	match, err := NewMatch(MatchConfig{
		Source1:   NetworkAgent{Network: job.Genome1.Network},
		Source2:   NetworkAgent{Network: job.Genome2.Network},
		Spawn1X:   job.Spawn1X,
		Spawn2X:   job.Spawn2X,
		MaxTicks:  maxTicks,
		Evaluator: eval,
	})
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("job %d: %w", job.JobID, err)
	}
	match.Run()

	summary := match.Summary()
	score := eval.Score(summary)

	return model.MatchResult{
		JobID:    job.JobID,
		Fitness1: match.shaping1 + score.Fitness1,
		Fitness2: match.shaping2 + score.Fitness2,
		Won1:     score.Won1,
		Won2:     score.Won2,
		Health1:  summary.Health1,
		Health2:  summary.Health2,
	}, nil
}
