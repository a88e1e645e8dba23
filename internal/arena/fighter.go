package arena

// State is the per-agent combat state machine.
type State int

const (
	StateIdle State = iota
	StateMoveLeft
	StateMoveRight
	StateJump
	StateCrouch
	StatePunch
	StateKick
	StateBlock
	StateDead
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoveLeft:
		return "move_left"
	case StateMoveRight:
		return "move_right"
	case StateJump:
		return "jump"
	case StateCrouch:
		return "crouch"
	case StatePunch:
		return "punch"
	case StateKick:
		return "kick"
	case StateBlock:
		return "block"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Arena geometry and resource bounds. Y grows upward from the ground plane.
const (
	ArenaWidth  = 800.0
	ArenaHeight = 400.0

	MaxHealth = 100.0
	MaxEnergy = 100.0

	FighterWidth  = 40.0
	FighterHeight = 100.0
	CrouchHeight  = 60.0
)

// Physics and combat tuning. One tick is one fixed simulation step.
const (
	gravity  = 0.5
	friction = 0.85

	moveSpeed    = 3.0
	jumpVelocity = 10.0

	idleEnergyRegen   = 0.4
	activeEnergyRegen = 0.15

	moveEnergyCost   = 0.05
	jumpEnergyCost   = 8.0
	crouchEnergyCost = 0.05
	blockEnergyCost  = 0.2
	punchEnergyCost  = 7.0
	kickEnergyCost   = 12.0

	punchDamage = 8.0
	kickDamage  = 14.0

	punchCooldown = 20
	kickCooldown  = 30

	// Movement is animation-locked while cooldown exceeds this.
	lockThreshold = 10

	// The attack hitbox is live only in a narrow sub-window measured in
	// ticks elapsed since the attack started.
	hitWindowStart = 3
	hitWindowEnd   = 8

	punchReach = 55.0
	kickReach  = 70.0

	knockbackVX = 6.0
	knockbackVY = 4.0

	// A perfect negation stuns the attacker by extending their cooldown.
	stunExtension = 15

	// Energy the defender pays for absorbing a kick through a block.
	blockKickEnergyPenalty = 5.0
)

// DefaultMatchTicks is one minute of simulation at the fixed step rate.
const DefaultMatchTicks = 3600

type fighter struct {
	x, y     float64
	vx, vy   float64
	health   float64
	energy   float64
	state    State
	facing   int
	cooldown int

	// cooldownSet remembers the attack's starting cooldown so the hit
	// window can be located within it.
	cooldownSet int
	hitLanded   bool

	// pending holds the action decided last tick: the one-tick decision
	// latency applied symmetrically to every controller.
	pending ActionFlags
	source  DecisionSource

	damageDealt float64
}

func newFighter(spawnX float64, facing int, source DecisionSource) *fighter {
	return &fighter{
		x:      spawnX,
		y:      0,
		health: MaxHealth,
		energy: MaxEnergy,
		state:  StateIdle,
		facing: facing,
		source: source,
	}
}

func (f *fighter) alive() bool {
	return f.state != StateDead
}

func (f *fighter) height() float64 {
	if f.state == StateCrouch {
		return CrouchHeight
	}
	return FighterHeight
}

func (f *fighter) view() FighterView {
	return FighterView{
		X:        f.x,
		Y:        f.y,
		VX:       f.vx,
		VY:       f.vy,
		Health:   f.health,
		Energy:   f.energy,
		State:    f.state,
		Facing:   f.facing,
		Cooldown: f.cooldown,
		Width:    FighterWidth,
		Height:   f.height(),
	}
}

// bodyBox is the fighter's axis-aligned bounding box.
func (f *fighter) bodyBox() box {
	return box{
		minX: f.x - FighterWidth/2,
		maxX: f.x + FighterWidth/2,
		minY: f.y,
		maxY: f.y + f.height(),
	}
}

// attackBox returns the active hitbox, or false outside the live window.
func (f *fighter) attackBox() (box, bool) {
	var reach float64
	switch f.state {
	case StatePunch:
		reach = punchReach
	case StateKick:
		reach = kickReach
	default:
		return box{}, false
	}
	if f.hitLanded {
		return box{}, false
	}

	elapsed := f.cooldownSet - f.cooldown
	if elapsed < hitWindowStart || elapsed > hitWindowEnd {
		return box{}, false
	}

	minX := f.x + FighterWidth/2
	maxX := minX + reach
	if f.facing < 0 {
		maxX = f.x - FighterWidth/2
		minX = maxX - reach
	}
	return box{
		minX: minX,
		maxX: maxX,
		minY: f.y + f.height()*0.4,
		maxY: f.y + f.height()*0.9,
	}, true
}

// applyMovement handles movement-class actions when the fighter is not
// animation-locked. Block and crouch take precedence over locomotion.
func (f *fighter) applyMovement(flags ActionFlags) {
	switch {
	case flags.Block && f.energy >= blockEnergyCost:
		f.state = StateBlock
		f.energy -= blockEnergyCost
	case flags.Down && f.energy >= crouchEnergyCost:
		f.state = StateCrouch
		f.energy -= crouchEnergyCost
	case flags.Up && f.y == 0 && f.energy >= jumpEnergyCost:
		f.state = StateJump
		f.vy = jumpVelocity
		f.energy -= jumpEnergyCost
	case flags.Left && f.energy >= moveEnergyCost:
		f.state = StateMoveLeft
		f.vx = -moveSpeed
		f.facing = -1
		f.energy -= moveEnergyCost
	case flags.Right && f.energy >= moveEnergyCost:
		f.state = StateMoveRight
		f.vx = moveSpeed
		f.facing = 1
		f.energy -= moveEnergyCost
	default:
		if f.y == 0 {
			f.state = StateIdle
		}
	}
}

// tryAttack initiates punch or kick when off cooldown. Light attacks win a
// simultaneous request.
func (f *fighter) tryAttack(flags ActionFlags) {
	if f.cooldown != 0 {
		return
	}
	switch {
	case flags.AttackLight && f.energy >= punchEnergyCost:
		f.state = StatePunch
		f.cooldown = punchCooldown
		f.cooldownSet = punchCooldown
		f.hitLanded = false
		f.energy -= punchEnergyCost
	case flags.AttackHeavy && f.energy >= kickEnergyCost:
		f.state = StateKick
		f.cooldown = kickCooldown
		f.cooldownSet = kickCooldown
		f.hitLanded = false
		f.energy -= kickEnergyCost
	}
}

func (f *fighter) regenerate() {
	regen := activeEnergyRegen
	if f.state == StateIdle {
		regen = idleEnergyRegen
	}
	f.energy += regen
	if f.energy > MaxEnergy {
		f.energy = MaxEnergy
	}
}

// integrate advances position and velocity under gravity, friction and the
// arena bounds. Dead fighters ragdoll through the same integration.
func (f *fighter) integrate() {
	f.vy -= gravity
	f.x += f.vx
	f.y += f.vy

	if f.y <= 0 {
		f.y = 0
		f.vy = 0
		f.vx *= friction
	}

	half := FighterWidth / 2
	if f.x < half {
		f.x = half
		f.vx = 0
	}
	if f.x > ArenaWidth-half {
		f.x = ArenaWidth - half
		f.vx = 0
	}
}

type box struct {
	minX, maxX float64
	minY, maxY float64
}

func (b box) overlaps(o box) bool {
	return b.minX <= o.maxX && b.maxX >= o.minX && b.minY <= o.maxY && b.maxY >= o.minY
}
