// Package policy defines the closed set of intent policies that both the
// ego vehicle (as PMCTS tree actions) and non-ego vehicles (as belief-state
// hypotheses) can be assigned. The set is small and fixed, so it is modeled
// as a tagged variant rather than an open-ended interface hierarchy.
package policy

// Kind tags which family of behavior a Policy describes.
type Kind int

const (
	// LaneChange commits the vehicle to moving into TargetLane once clear.
	LaneChange Kind = iota
	// Delayed waits FollowTime before re-evaluating, then behaves like LaneChange.
	Delayed
	// OpenLoop holds a fixed velocity/lane with no closed-loop reaction.
	OpenLoop
)

func (k Kind) String() string {
	switch k {
	case LaneChange:
		return "lane_change"
	case Delayed:
		return "delayed"
	case OpenLoop:
		return "open_loop"
	default:
		return "unknown"
	}
}

// Policy is an immutable intent: a tagged variant exposing the capability
// set named in the design notes (choose_target_lane, choose_trajectory,
// choose_follow_time, choose_vel, policy_id, operating_policy). Not every
// field is meaningful for every Kind; the "choose_*" accessors report via
// their bool whether the field applies.
type Policy struct {
	kind Kind
	id   int

	targetLane int
	followTime float64
	vel        float64
	waitForClear bool
}

// New constructs a Policy of the given kind, tagged with its ordinal id
// within the fixed ordered policy set (see Set below).
func New(id int, kind Kind, targetLane int, followTime, vel float64, waitForClear bool) Policy {
	return Policy{
		kind:         kind,
		id:           id,
		targetLane:   targetLane,
		followTime:   followTime,
		vel:          vel,
		waitForClear: waitForClear,
	}
}

// PolicyID returns the policy's ordinal position in the fixed ordered set
// it was constructed from. Belief vectors and CFB joint assignments index
// policies by this id.
func (p Policy) PolicyID() int { return p.id }

// OperatingPolicy returns the tagged variant this Policy belongs to.
func (p Policy) OperatingPolicy() Kind { return p.kind }

// ChooseTargetLane returns the lane this policy commits to, if it has one.
func (p Policy) ChooseTargetLane() (int, bool) {
	if p.kind == OpenLoop {
		return 0, false
	}
	return p.targetLane, true
}

// ChooseFollowTime returns the delay before acting, for Delayed policies.
func (p Policy) ChooseFollowTime() (float64, bool) {
	if p.kind != Delayed {
		return 0, false
	}
	return p.followTime, true
}

// ChooseVel returns the target velocity, for OpenLoop policies.
func (p Policy) ChooseVel() (float64, bool) {
	if p.kind != OpenLoop {
		return 0, false
	}
	return p.vel, true
}

// ChooseTrajectory reports whether this policy is still waiting for a gap
// to clear before committing to its lane change (LaneChange/Delayed only).
func (p Policy) ChooseTrajectory() (waitForClear bool, applies bool) {
	if p.kind == OpenLoop {
		return false, false
	}
	return p.waitForClear, true
}

// Set is a fixed, ordered collection of policies. Belief, CFB, and the MCTS
// tree's n_actions branching factor all index into the same Set.
type Set []Policy

// Len is the branching factor n_actions this Set implies.
func (s Set) Len() int { return len(s) }
