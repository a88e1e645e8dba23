package fitness

import (
	"math"
	"testing"
)

func testEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	eval, err := NewEvaluator(DefaultConfig())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return eval
}

func TestTickRewardDeadOpponentEarnsNothing(t *testing.T) {
	eval := testEvaluator(t)
	reward := eval.TickReward(TickState{Distance: 10, FacingOpponent: true, Attacking: true, X: 400, ArenaWidth: 800, OpponentAlive: false})
	if reward != 0 {
		t.Fatalf("expected zero reward against a dead opponent, got %f", reward)
	}
}

func TestTickRewardProximityBands(t *testing.T) {
	eval := testEvaluator(t)
	cfg := eval.Config()
	base := TickState{X: 400, ArenaWidth: 800, OpponentAlive: true}

	closeState := base
	closeState.Distance = cfg.CloseRange - 1
	midState := base
	midState.Distance = cfg.MidRange - 1
	farState := base
	farState.Distance = cfg.FarRange - 1
	outState := base
	outState.Distance = cfg.FarRange + 1

	closeReward := eval.TickReward(closeState)
	midReward := eval.TickReward(midState)
	farReward := eval.TickReward(farState)
	outReward := eval.TickReward(outState)

	if !(closeReward > midReward && midReward > farReward && farReward > outReward) {
		t.Fatalf("expected graduated proximity rewards, got close=%f mid=%f far=%f out=%f", closeReward, midReward, farReward, outReward)
	}
}

func TestTickRewardEdgeAndCenter(t *testing.T) {
	eval := testEvaluator(t)
	cfg := eval.Config()
	base := TickState{Distance: cfg.FarRange + 100, ArenaWidth: 800, OpponentAlive: true}

	edge := base
	edge.X = cfg.EdgeZone / 2
	center := base
	center.X = 400

	edgeReward := eval.TickReward(edge)
	centerReward := eval.TickReward(center)
	if edgeReward >= centerReward {
		t.Fatalf("expected edge penalty below center bonus: edge=%f center=%f", edgeReward, centerReward)
	}

	wantCenter := -cfg.TimePenalty + cfg.CenterBonus
	if math.Abs(centerReward-wantCenter) > 1e-12 {
		t.Fatalf("center reward mismatch: got %f, want %f", centerReward, wantCenter)
	}
}

func TestTickRewardAggressionOnlyInRange(t *testing.T) {
	eval := testEvaluator(t)
	cfg := eval.Config()
	base := TickState{X: 400, ArenaWidth: 800, OpponentAlive: true, Attacking: true}

	near := base
	near.Distance = cfg.AggressionRange - 1
	far := base
	far.Distance = cfg.FarRange + 50

	if eval.TickReward(near) <= eval.TickReward(far) {
		t.Fatal("expected aggression reward only within aggression range")
	}
}

func TestScoreKnockoutBeatsTimeoutWin(t *testing.T) {
	eval := testEvaluator(t)

	knockout := eval.Score(MatchSummary{DamageDealt1: 100, Health1: 60, Knockout: true, Winner: 1})
	timeout := eval.Score(MatchSummary{DamageDealt1: 100, Health1: 60, TimedOut: true, Winner: 1})

	if !knockout.Won1 || knockout.Won2 {
		t.Fatalf("expected side 1 win flags, got %+v", knockout)
	}
	if knockout.Fitness1 <= timeout.Fitness1 {
		t.Fatalf("expected knockout bonus above timeout bonus: knockout=%f timeout=%f", knockout.Fitness1, timeout.Fitness1)
	}
}

func TestScoreStalematePenalizesBothSides(t *testing.T) {
	eval := testEvaluator(t)
	cfg := eval.Config()

	score := eval.Score(MatchSummary{
		DamageDealt1: 1,
		DamageDealt2: 2,
		Health1:      100,
		Health2:      100,
		TimedOut:     true,
		Winner:       0,
	})

	base1 := 1*cfg.DamageMultiplier + 100*cfg.HealthMultiplier
	base2 := 2*cfg.DamageMultiplier + 100*cfg.HealthMultiplier
	if math.Abs(score.Fitness1-(base1-cfg.StalematePenalty)) > 1e-9 {
		t.Fatalf("side 1 stalemate penalty missing: got %f", score.Fitness1)
	}
	if math.Abs(score.Fitness2-(base2-cfg.StalematePenalty)) > 1e-9 {
		t.Fatalf("side 2 stalemate penalty missing: got %f", score.Fitness2)
	}
	if score.Won1 || score.Won2 {
		t.Fatal("stalemate must not set win flags")
	}
}

func TestScoreNoStalemateAboveThreshold(t *testing.T) {
	eval := testEvaluator(t)
	cfg := eval.Config()

	score := eval.Score(MatchSummary{
		DamageDealt1: cfg.StalemateDamageThreshold,
		DamageDealt2: cfg.StalemateDamageThreshold,
		TimedOut:     true,
		Winner:       1,
	})

	want := cfg.StalemateDamageThreshold*cfg.DamageMultiplier + cfg.TimeoutWinBonus
	if math.Abs(score.Fitness1-want) > 1e-9 {
		t.Fatalf("unexpected stalemate penalty: got %f, want %f", score.Fitness1, want)
	}
}
