package arena

import (
	"fmt"
	"log"

	"neuroarena/internal/model"
	"neuroarena/internal/nn"
)

// ActionFlags is the fixed action surface every controller emits per tick.
type ActionFlags struct {
	Left        bool `json:"left"`
	Right       bool `json:"right"`
	Up          bool `json:"up"`
	Down        bool `json:"down"`
	AttackLight bool `json:"attack_light"`
	AttackHeavy bool `json:"attack_heavy"`
	Block       bool `json:"block"`
}

// NeutralAction is the substitute for any controller failure: do nothing.
func NeutralAction() ActionFlags {
	return ActionFlags{}
}

// Vector encodes the flags as 0/1 values in output order, for use as
// observed-action training data.
func (f ActionFlags) Vector() []float64 {
	bools := []bool{f.Left, f.Right, f.Up, f.Down, f.AttackLight, f.AttackHeavy, f.Block}
	out := make([]float64, len(bools))
	for i, b := range bools {
		if b {
			out[i] = 1
		}
	}
	return out
}

// FlagsFromOutputs thresholds raw network outputs at 0.5 per action.
func FlagsFromOutputs(outputs []float64) (ActionFlags, error) {
	if len(outputs) != model.OutputCount {
		return ActionFlags{}, fmt.Errorf("output length mismatch: got %d, want %d", len(outputs), model.OutputCount)
	}
	return ActionFlags{
		Left:        outputs[0] > 0.5,
		Right:       outputs[1] > 0.5,
		Up:          outputs[2] > 0.5,
		Down:        outputs[3] > 0.5,
		AttackLight: outputs[4] > 0.5,
		AttackHeavy: outputs[5] > 0.5,
		Block:       outputs[6] > 0.5,
	}, nil
}

// FighterView is the read-only snapshot handed to every decision source.
type FighterView struct {
	X        float64
	Y        float64
	VX       float64
	VY       float64
	Health   float64
	Energy   float64
	State    State
	Facing   int
	Cooldown int
	Width    float64
	Height   float64
}

// DecisionSource is the single capability shared by network, script, and
// neutral controllers: state in, action flags out. Implementations must be
// pure with respect to the views they receive.
type DecisionSource interface {
	Decide(self, opponent FighterView) (ActionFlags, error)
}

// NetworkAgent drives a fighter from a feed-forward network.
type NetworkAgent struct {
	Network model.Network
}

func (a NetworkAgent) Decide(self, opponent FighterView) (ActionFlags, error) {
	outputs, err := nn.Predict(a.Network, Observation(self, opponent))
	if err != nil {
		return ActionFlags{}, err
	}
	return FlagsFromOutputs(outputs)
}

// ScriptFunc adapts an externally supplied pure decision function.
type ScriptFunc func(self, opponent FighterView) ActionFlags

func (f ScriptFunc) Decide(self, opponent FighterView) (ActionFlags, error) {
	return f(self, opponent), nil
}

// NeutralSource never acts.
type NeutralSource struct{}

func (NeutralSource) Decide(_, _ FighterView) (ActionFlags, error) {
	return NeutralAction(), nil
}

// Observation builds the fixed-length input vector for network controllers.
// All features are normalized against arena and resource bounds.
func Observation(self, opponent FighterView) []float64 {
	attacking := 0.0
	if opponent.State == StatePunch || opponent.State == StateKick {
		attacking = 1
	}
	return []float64{
		(opponent.X - self.X) / ArenaWidth,
		(opponent.Y - self.Y) / ArenaHeight,
		self.Health / MaxHealth,
		opponent.Health / MaxHealth,
		self.Energy / MaxEnergy,
		opponent.Energy / MaxEnergy,
		float64(self.Facing),
		float64(opponent.Facing),
		float64(self.Cooldown) / float64(kickCooldown),
		float64(opponent.Cooldown) / float64(kickCooldown),
		self.X / ArenaWidth,
		attacking,
	}
}

// safeDecide shields the simulation loop from controller failures: any error
// or panic is logged and replaced by the neutral action, so one bad script
// cannot halt an otherwise healthy match.
func safeDecide(src DecisionSource, self, opponent FighterView) (flags ActionFlags) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("arena: decision source panic recovered: %v", r)
			flags = NeutralAction()
		}
	}()

	flags, err := src.Decide(self, opponent)
	if err != nil {
		log.Printf("arena: decision source error: %v", err)
		return NeutralAction()
	}
	return flags
}
