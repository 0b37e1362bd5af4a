// Package mcts implements the Progressive Monte-Carlo Tree Search core
// (spec §4.G): tree-node lifecycle and expansion, the UCB-family
// selection index, rollout with prefix-skip particle replay, cost
// back-propagation under every CostBoundMode, and final-choice
// extraction. It is grounded on progressive_mcts_run's generic MctsNode,
// ported from mutate-in-place Rust to Go's explicit state threading while
// keeping the same algorithm shape.
package mcts

import (
	"math"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/cost"
	"github.com/rgardner/pmcts/internal/klucb"
	"github.com/rgardner/pmcts/internal/simulator"
)

// Node is one node of the search tree. The root has no policy; every
// other node's PolicyIndex is the action taken on the edge from its
// parent (spec §4.G.1 "TreeNode data model").
type Node struct {
	depth       int
	hasPolicy   bool
	policyIndex int

	nTrials            int
	expectedCost       float64
	expectedCostStdDev float64
	hasExpectedCost    bool

	intermediateCosts *cost.Set[struct{}]
	marginalCosts     *cost.Set[struct{}]

	seenParticles      map[int]bool
	nParticlesRepeated int

	children []*Node
	costs    *cost.Set[simulator.Simulator]

	// subNodeRepeatedParticles only ever accumulates at the root: the
	// replay mechanism (spec §4.G.4) only looks one layer deep from the
	// node it starts the trial path from, which is always the root.
	subNodeRepeatedParticles []repeatedParticle
}

type repeatedParticle struct {
	cost float64
	sim  simulator.Simulator
}

// NewRoot creates an unexpanded root node.
func NewRoot() *Node {
	return newNode(0, false, 0)
}

func newNode(depth int, hasPolicy bool, policyIndex int) *Node {
	return &Node{
		depth:             depth,
		hasPolicy:         hasPolicy,
		policyIndex:       policyIndex,
		intermediateCosts: cost.NewSet[struct{}](),
		marginalCosts:     cost.NewSet[struct{}](),
		seenParticles:     make(map[int]bool),
		costs:             cost.NewSet[simulator.Simulator](),
	}
}

// PolicyIndex returns the action that led to this node and whether this
// is the root (which has none).
func (n *Node) PolicyIndex() (int, bool) { return n.policyIndex, n.hasPolicy }

// NTrials returns how many trials have passed through this node.
func (n *Node) NTrials() int { return n.nTrials }

// ExpectedCost returns the node's current cost estimate (spec §4.G.6),
// valid once at least one trial has updated it.
func (n *Node) ExpectedCost() (float64, bool) { return n.expectedCost, n.hasExpectedCost }

// Children returns the node's expanded children, or nil if unexpanded.
func (n *Node) Children() []*Node { return n.children }

// NParticlesRepeated returns how many trials through this node replayed
// an existing particle instead of sampling a fresh one.
func (n *Node) NParticlesRepeated() int { return n.nParticlesRepeated }

func (n *Node) hasSeenParticle(id int) bool { return n.seenParticles[id] }
func (n *Node) markSeenParticle(id int)     { n.seenParticles[id] = true }

// ExpandChildren lazily creates nActions children, one per policy index,
// and returns them (spec §4.G.1 "expansion").
func (n *Node) ExpandChildren(nActions int) []*Node {
	if n.children == nil {
		n.children = make([]*Node, nActions)
		for i := range n.children {
			n.children[i] = newNode(n.depth+1, true, i)
		}
	}
	return n.children
}

func (n *Node) variance() float64 {
	sd := n.costs.StdDev()
	return sd * sd
}

func (n *Node) minChildExpectedCostAndStdDev() (cost float64, stdDev float64, ok bool) {
	found := false
	for _, c := range n.children {
		ec, has := c.ExpectedCost()
		if !has {
			continue
		}
		if !found || ec < cost {
			cost, stdDev, found = ec, c.expectedCostStdDev, true
		}
	}
	return cost, stdDev, found
}

func (n *Node) meanCost() float64      { return n.costs.Mean() }
func (n *Node) stdDevOfMean() float64  { return n.costs.StdDevOfMean() }
func (n *Node) intermediateCost() float64 {
	if n.intermediateCosts.IsEmpty() {
		return 0
	}
	return n.intermediateCosts.Mean()
}
func (n *Node) intermediateCostStdDev() float64 {
	if n.intermediateCosts.IsEmpty() {
		return 0
	}
	return n.intermediateCosts.StdDevOfMean()
}
func (n *Node) marginalCost() float64 {
	if n.marginalCosts.IsEmpty() {
		return 0
	}
	return n.marginalCosts.Mean()
}
func (n *Node) marginalCostStdDev() float64 {
	if n.marginalCosts.IsEmpty() {
		return 0
	}
	return n.marginalCosts.StdDevOfMean()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// computeSelectionIndex evaluates the chosen UCB-family index for one
// child (spec §4.G.3). Lower is always better: KL-UCB-family indices are
// negated so every mode shares the same "minimize to select" convention.
func computeSelectionIndex(p config.Params, totalN, lnTotalN float64, nTrials int, meanCost float64, mode config.ChildSelectionMode, variance float64) float64 {
	n := float64(nTrials)
	lnTOverN := lnTotalN / n
	switch mode {
	case config.UCB:
		return meanCost + p.UCBConst*math.Sqrt(lnTOverN)
	case config.UCBV:
		return meanCost + p.UCBConst*(p.UCBVConst*math.Sqrt(variance*lnTOverN)+lnTOverN)
	case config.UCBd:
		a := (1 + n) / (n * n)
		b := math.Log(totalN * math.Sqrt(1+n) / p.UCBdConst)
		return meanCost + p.UCBConst*math.Sqrt(a*(1+2*b))
	case config.KLUCB:
		scaledMean := clamp01(1 - meanCost/p.KLUCBMaxCost)
		return -klucb.Bernoulli(scaledMean, math.Abs(p.UCBConst)*lnTOverN)
	case config.KLUCBPlus:
		scaledMean := clamp01(1 - meanCost/p.KLUCBMaxCost)
		return -klucb.Bernoulli(scaledMean, math.Abs(p.UCBConst)*math.Log(totalN/n)/n)
	case config.Uniform:
		return n
	default:
		exceptions.Panicf("unknown child selection mode %v", mode)
		return 0
	}
}

// ComputeExpectedCostIndex evaluates this node's selection index given
// the parent's total trial count, or false if this node has never been
// trialed.
func (n *Node) ComputeExpectedCostIndex(p config.Params, totalN, lnTotalN float64) (float64, bool) {
	if n.costs.Len() == 0 {
		return 0, false
	}
	variance := 0.0
	if p.SelectionMode == config.UCBV {
		variance = n.variance()
	}
	return computeSelectionIndex(p, totalN, lnTotalN, n.costs.Len(), n.expectedCost, p.SelectionMode, variance), true
}

// UpdateExpectedCost recomputes ExpectedCost/ExpectedCostStdDev from the
// node's own trial history and its children, per boundMode (spec §4.G.6).
func (n *Node) UpdateExpectedCost(boundMode config.CostBoundMode) {
	var ec, sd float64
	switch boundMode {
	case config.Classic:
		ec, sd = n.meanCost(), n.stdDevOfMean()
	case config.Expectimax:
		var ok bool
		ec, sd, ok = n.minChildExpectedCostAndStdDev()
		if !ok {
			ec, sd = n.meanCost(), n.stdDevOfMean()
		}
	case config.LowerBound:
		var ok bool
		ec, sd, ok = n.minChildExpectedCostAndStdDev()
		if !ok {
			ec, sd = 0, 0
		}
		if ic := n.intermediateCost(); ic > ec {
			ec = ic
			sd = n.intermediateCostStdDev()
		}
	case config.Marginal:
		var ok bool
		ec, sd, ok = n.minChildExpectedCostAndStdDev()
		if !ok {
			ec, sd = 0, 0
		}
		ec += n.marginalCost()
		sd = math.Hypot(sd, n.marginalCostStdDev())
	case config.Same:
		exceptions.Panicf("bound mode cannot be Same")
	default:
		exceptions.Panicf("unknown cost bound mode %v", boundMode)
	}
	n.expectedCost = ec
	n.expectedCostStdDev = sd
	n.hasExpectedCost = true
}

// GetBestPolicyByCost returns the child policy index with the lowest
// expected cost, defaulting unexpanded children to +Inf (spec §4.G.7).
func (n *Node) GetBestPolicyByCost() int {
	best, bestCost := -1, math.Inf(1)
	for i, c := range n.children {
		ec, ok := c.ExpectedCost()
		if !ok {
			ec = math.Inf(1)
		}
		if ec < bestCost {
			best, bestCost = i, ec
		}
	}
	return best
}

// GetBestPolicyByVisits returns the child policy index with the most
// trials, used by the most-visited-vs-best-cost consistency check (spec
// §4.G.7, §4.H).
func (n *Node) GetBestPolicyByVisits() int {
	best, bestN := -1, -1
	for i, c := range n.children {
		if c.costs.Len() > bestN {
			best, bestN = i, c.costs.Len()
		}
	}
	return best
}

// FindTrialPath walks down the tree from n, expanding children as needed,
// choosing an unexplored child uniformly at random if one exists,
// otherwise the child minimizing the selection index (spec §4.G.2
// "selection"). It returns the sequence of child indices taken.
func (n *Node) FindTrialPath(rng *rand.Rand, params config.Params, path []int) []int {
	if n.depth+1 > params.SearchDepth {
		return path
	}

	totalN := n.nTrials
	children := n.ExpandChildren(params.NActions)

	// prefer_same_policy (spec §9 Open Question resolution): before
	// picking an unexplored child at random, try the child whose policy
	// matches the one that led to n, if it hasn't been trialed yet.
	if params.PreferSamePolicy && n.hasPolicy {
		if same := children[n.policyIndex]; same.nTrials == 0 {
			return same.FindTrialPath(rng, params, append(path, n.policyIndex))
		}
	}

	var unexplored []int
	for i, c := range children {
		if c.nTrials == 0 {
			unexplored = append(unexplored, i)
		}
	}
	if len(unexplored) > 0 {
		chosen := unexplored[rng.Intn(len(unexplored))]
		return children[chosen].FindTrialPath(rng, params, append(path, chosen))
	}

	lnT := math.Log(float64(totalN))
	best, bestIdx := -1, math.Inf(1)
	for i, c := range children {
		idx, ok := c.ComputeExpectedCostIndex(params, float64(totalN), lnT)
		if !ok {
			continue
		}
		if best == -1 || idx < bestIdx {
			best, bestIdx = i, idx
		}
	}
	return children[best].FindTrialPath(rng, params, append(path, best))
}

// replayCandidate is a previously-seen particle a node decided to replay
// down a sibling branch instead of sampling a fresh one.
type replayCandidate struct {
	depth int
	cost  float64
	sim   simulator.Simulator
}

// shouldReplayParticleAt looks for a particle node hasn't seen on the
// subNodeI branch yet: first among particles other siblings have already
// repeated, then the highest-cost particle node itself has seen (spec
// §4.G.4, "sibling-priority then worst-so-far").
func shouldReplayParticleAt(node *Node, subNodeI int) (replayCandidate, bool) {
	if node.depth != 0 {
		return replayCandidate{}, false
	}
	subNode := node.children[subNodeI]

	for _, rp := range node.subNodeRepeatedParticles {
		if !subNode.hasSeenParticle(rp.sim.ParticleID()) {
			return replayCandidate{depth: subNode.depth, cost: rp.cost, sim: rp.sim}, true
		}
	}

	found := false
	var best replayCandidate
	for _, s := range node.costs.All() {
		if subNode.hasSeenParticle(s.Provenance.ParticleID()) {
			continue
		}
		if !found || s.Cost > best.cost {
			best = replayCandidate{depth: subNode.depth, cost: s.Cost, sim: s.Provenance}
			found = true
		}
	}
	return best, found
}

// shouldReplayParticle decides whether the upcoming trial down path should
// replay an existing particle instead of sampling a fresh one, gated by
// repeat_const and the root's running replay count (spec §4.G.4).
func shouldReplayParticle(root *Node, params config.Params, path []int) (replayCandidate, bool) {
	if params.RepeatConst <= 0 {
		return replayCandidate{}, false
	}
	repeatN := int(params.RepeatConst / float64(params.SamplesN))
	if root.nParticlesRepeated >= repeatN {
		return replayCandidate{}, false
	}

	node := root
	remaining := path
	for len(remaining) >= 2 {
		subNodeI := remaining[0]
		if cand, ok := shouldReplayParticleAt(node, subNodeI); ok {
			return cand, true
		}
		node = node.children[subNodeI]
		remaining = remaining[1:]
	}
	return replayCandidate{}, false
}

func nodeAtPath(root *Node, path []int) *Node {
	n := root
	for _, i := range path {
		n = n.children[i]
	}
	return n
}

// runStep applies node's own policy (the edge that leads to it) for one
// decision layer, recording the intermediate and marginal cost it causes
// (spec §4.G.5). The root has no policy and is a no-op.
func runStep(node *Node, sim simulator.Simulator, params config.Params, stepsTaken *int) simulator.Simulator {
	if !node.hasPolicy {
		return sim
	}
	prevCost := sim.Cost().Total()
	sim = sim.SetEgoPolicy(node.policyIndex)
	sim = sim.Advance(params.LayerT, params.DT)
	newCost := sim.Cost().Total()

	node.intermediateCosts.Push(cost.Sample[struct{}]{Cost: float64(newCost)})
	node.marginalCosts.Push(cost.Sample[struct{}]{Cost: float64(newCost - prevCost)})
	*stepsTaken++
	return sim
}

// RunTrial advances sim one rollout along path, skipping the first
// skipDepth layers of cost bookkeeping when replaying a particle that
// already has a valid prefix recorded (spec §4.G.5 "rollout with
// prefix-skip"). It returns the trial's final cost and the simulator
// state reached.
func RunTrial(node *Node, sim simulator.Simulator, params config.Params, path []int, skipDepth int, stepsTaken *int) (float64, simulator.Simulator) {
	skipOver := skipDepth > 0
	if !skipOver {
		sim = runStep(node, sim, params, stepsTaken)
	}
	origSim := sim.Clone()

	var trialFinalCost float64
	if len(path) == 0 {
		trialFinalCost = float64(sim.Cost().Total())
	} else {
		trialFinalCost, sim = RunTrial(node.children[path[0]], sim, params, path[1:], skipDepth-1, stepsTaken)
	}

	if !skipOver {
		node.costs.Push(cost.Sample[simulator.Simulator]{Cost: trialFinalCost, Provenance: origSim})
		node.markSeenParticle(sim.ParticleID())
		node.nTrials = node.costs.Len()
	}
	node.UpdateExpectedCost(params.BoundMode)

	return trialFinalCost, sim
}

// FindAndRunTrial runs one complete PMCTS trial from root: selects a path,
// decides whether to replay an existing particle along a prefix of it
// (spec §4.G.4), then runs the rollout and back-propagates cost (spec
// §4.G.5, §4.G.6). freshSim must already be BindParticle'd to a new
// particle; it is only used when no replay candidate is chosen.
func FindAndRunTrial(root *Node, freshSim simulator.Simulator, rng *rand.Rand, params config.Params, stepsTaken *int) float64 {
	path := root.FindTrialPath(rng, params, nil)

	if cand, ok := shouldReplayParticle(root, params, path); ok {
		score, _ := RunTrial(root, cand.sim, params, path, cand.depth, stepsTaken)

		prefixNode := nodeAtPath(root, path[:cand.depth-1])
		prefixNode.subNodeRepeatedParticles = append(prefixNode.subNodeRepeatedParticles, repeatedParticle{cost: cand.cost, sim: cand.sim})

		walk := root
		walk.nParticlesRepeated++
		for _, i := range path {
			walk = walk.children[i]
			walk.nParticlesRepeated++
		}
		return score
	}

	score, _ := RunTrial(root, freshSim, params, path, 0, stepsTaken)
	return score
}

// SetFinalChoiceExpectedValues recomputes every trialed node's expected
// cost under the effective final-choice bound mode, which may differ from
// the bound mode used during search (spec §4.G.7).
func SetFinalChoiceExpectedValues(params config.Params, node *Node) {
	for _, c := range node.children {
		SetFinalChoiceExpectedValues(params, c)
	}
	if node.nTrials == 0 {
		return
	}
	node.UpdateExpectedCost(params.EffectiveFinalChoiceMode())
}
