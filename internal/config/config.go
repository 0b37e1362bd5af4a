// Package config defines PMCTS's enumerated configuration (spec §6.1):
// the cost-bound propagation mode, the child-selection index, the CFB and
// belief-update blocks, and the numeric knobs every other package reads
// from a shared Params value. Enum values parse from case-insensitive
// strings, and LoadBatch reads many named scenario configurations from
// one YAML file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rgardner/pmcts/internal/belief"
	"github.com/rgardner/pmcts/internal/cfb"
)

// CostBoundMode selects how a node's expected cost is derived from its
// trial history and children (spec §4.G.6).
type CostBoundMode int

const (
	Classic CostBoundMode = iota
	Expectimax
	LowerBound
	Marginal
	Same
)

func (m CostBoundMode) String() string {
	switch m {
	case Classic:
		return "classic"
	case Expectimax:
		return "expectimax"
	case LowerBound:
		return "lower_bound"
	case Marginal:
		return "marginal"
	case Same:
		return "same"
	default:
		return "unknown"
	}
}

// ParseCostBoundMode parses a case-insensitive snake_case cost bound mode.
func ParseCostBoundMode(s string) (CostBoundMode, error) {
	switch strings.ToLower(s) {
	case "classic":
		return Classic, nil
	case "expectimax":
		return Expectimax, nil
	case "lower_bound":
		return LowerBound, nil
	case "marginal":
		return Marginal, nil
	case "same":
		return Same, nil
	default:
		return 0, errors.Errorf("invalid cost bound mode %q", s)
	}
}

func (m CostBoundMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *CostBoundMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCostBoundMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ChildSelectionMode selects the upper-confidence index used to pick
// which child to descend into during selection (spec §4.C, §4.G.3).
type ChildSelectionMode int

const (
	UCB ChildSelectionMode = iota
	UCBV
	UCBd
	KLUCB
	KLUCBPlus
	Uniform
)

func (m ChildSelectionMode) String() string {
	switch m {
	case UCB:
		return "ucb"
	case UCBV:
		return "ucbv"
	case UCBd:
		return "ucbd"
	case KLUCB:
		return "klucb"
	case KLUCBPlus:
		return "klucb+"
	case Uniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// ParseChildSelectionMode parses a case-insensitive child selection mode.
func ParseChildSelectionMode(s string) (ChildSelectionMode, error) {
	switch strings.ToLower(s) {
	case "ucb":
		return UCB, nil
	case "ucbv":
		return UCBV, nil
	case "ucbd":
		return UCBd, nil
	case "klucb":
		return KLUCB, nil
	case "klucb+":
		return KLUCBPlus, nil
	case "uniform":
		return Uniform, nil
	default:
		return 0, errors.Errorf("invalid child selection mode %q", s)
	}
}

func (m ChildSelectionMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *ChildSelectionMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseChildSelectionMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Params is the full set of knobs one PMCTS run reads (spec §6.1). YAML
// tags let a batch harness load many scenario configurations from one
// file (spec §5, §6.2 DOMAIN STACK).
type Params struct {
	SearchDepth int `yaml:"search_depth"`
	NActions    int `yaml:"n_actions"`
	SamplesN    int `yaml:"samples_n"`

	BoundMode       CostBoundMode      `yaml:"bound_mode"`
	FinalChoiceMode CostBoundMode      `yaml:"final_choice_mode"`
	SelectionMode   ChildSelectionMode `yaml:"selection_mode"`

	UCBConst     float64 `yaml:"ucb_const"`
	UCBVConst    float64 `yaml:"ucbv_const"`
	UCBdConst    float64 `yaml:"ucbd_const"`
	KLUCBMaxCost float64 `yaml:"klucb_max_cost"`

	RepeatConst float64 `yaml:"repeat_const"`

	MostVisitedBestCostConsistency bool `yaml:"most_visited_best_cost_consistency"`

	// PreferSamePolicy biases selection (spec §4.G.2) to try the child
	// matching a node's own incoming policy before any other unexplored
	// child, modeling a vehicle's preference for sticking to its current
	// intent (spec §9 Open Question resolution).
	PreferSamePolicy bool `yaml:"prefer_same_policy"`

	LayerT float64 `yaml:"layer_t"`
	DT     float64 `yaml:"dt"`

	RNGSeed uint64 `yaml:"rng_seed"`

	// NCars is the total vehicle count a scenario tracks, ego included
	// (car index 0). CFB's key-vehicle/uncertainty filters and the
	// belief's per-car rows are both sized from this.
	NCars int `yaml:"n_cars"`

	// DecelerateVel is the commanded velocity of the belief's single
	// Decelerate fallback policy (spec §4.D PolicySet).
	DecelerateVel float64 `yaml:"decelerate_vel"`

	// CFB nests the Conditional Focused Branching block (spec §6.1): the
	// key-vehicle/uncertainty filters, riskiness horizon, and
	// cartesian-product truncation. Kept nested, not flattened, since its
	// own DT (open-loop horizon step) is a distinct knob from the MCTS
	// layer-stepping DT above.
	CFB cfb.Params `yaml:"cfb"`

	// Belief carries the observation-update priors (spec §4.D) belief.Update
	// reads.
	Belief belief.Params `yaml:"belief"`
}

// Default returns baseline parameters in the same ranges as the
// reference implementation's arg_parameters defaults.
func Default() Params {
	return Params{
		SearchDepth:     4,
		NActions:        5,
		SamplesN:        250,
		BoundMode:       Marginal,
		FinalChoiceMode: Same,
		SelectionMode:   UCB,
		UCBConst:        0.1,
		UCBVConst:       1.0,
		UCBdConst:       0.1,
		KLUCBMaxCost:    100.0,
		RepeatConst:     0.0,
		LayerT:          2.0,
		DT:              0.2,
		RNGSeed:         0,
		NCars:           4,
		DecelerateVel:   0.0,
		CFB:             cfb.DefaultParams(),
		Belief:          belief.DefaultParams(),
	}
}

// EffectiveFinalChoiceMode resolves FinalChoiceMode, substituting
// BoundMode when FinalChoiceMode is Same (spec §4.G.7).
func (p Params) EffectiveFinalChoiceMode() CostBoundMode {
	if p.FinalChoiceMode == Same {
		return p.BoundMode
	}
	return p.FinalChoiceMode
}

// Batch is a named collection of scenario Params loaded from one YAML
// file, letting the harness (spec §5) sweep many configurations in a
// single invocation.
type Batch struct {
	Scenarios map[string]Params `yaml:"scenarios"`
}

// LoadBatch parses a YAML document into a Batch.
func LoadBatch(data []byte) (Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Batch{}, errors.Wrap(err, "failed to parse scenario batch YAML")
	}
	return b, nil
}
