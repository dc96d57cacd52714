package searcher

import (
	"errors"
	"fmt"
	"time"

	"checkers/game"
	"checkers/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

type Option func(t *Tree)

// Decision is the outcome of PickMove.
type Decision struct {
	Move   game.Move
	Prior  float64
	Child  NodeID
	Visits int
	Metric metrics.SearchMetric
}

// Tree runs Monte Carlo Tree Search over an Environment. It owns every node
// it creates; nodes are never freed individually, only with the tree on Reset.
// A Tree is not safe for concurrent use.
type Tree struct {
	id           uuid.UUID
	env          Environment
	strategy     Strategy
	rng          *rand.Rand
	simulations  int
	rolloutDepth int
	exploration  float64
	metrics      metrics.Collector

	nodes []*Node
	root  NodeID
}

func WithSimulations(simulations int) Option {
	return func(t *Tree) {
		if simulations > 0 {
			t.simulations = simulations
		}
	}
}

func WithRolloutDepth(depth int) Option {
	return func(t *Tree) {
		if depth > 0 {
			t.rolloutDepth = depth
		}
	}
}

func WithExploration(c float64) Option {
	return func(t *Tree) {
		if c >= 0 {
			t.exploration = c
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(t *Tree) {
		if rng != nil {
			t.rng = rng
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(t *Tree) {
		t.rng = rand.New(rand.NewSource(seed))
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(t *Tree) {
		if collector != nil {
			t.metrics = collector
		}
	}
}

// NewTree resets env to its starting position and roots a tree there.
func NewTree(env Environment, strategy Strategy, options ...Option) (*Tree, error) {
	t := &Tree{ // Default values
		env:          env,
		strategy:     strategy,
		rng:          rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
		simulations:  DefaultSimulations,
		rolloutDepth: DefaultRolloutDepth,
		exploration:  DefaultExploration,
		metrics:      metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(t)
	}
	if env == nil || strategy == nil {
		return nil, errors.New("tree requires an environment and a strategy")
	}
	if err := t.Reset(nil); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset discards all nodes and roots the tree at position, or at the
// environment's starting position when nil.
func (t *Tree) Reset(position *game.Position) error {
	start, err := t.env.Reset(position)
	if err != nil {
		return fmt.Errorf("reset environment: %w", err)
	}
	t.id = uuid.New()
	clear(t.nodes)
	t.nodes = t.nodes[:0]
	t.root = t.newNode(noParent, start, game.Move{}, start.Player().Opponent(), 1, false, 0)
	t.metrics.SetTreeReset(true)
	return nil
}

func (t *Tree) ID() uuid.UUID            { return t.id }
func (t *Tree) Root() NodeID             { return t.root }
func (t *Tree) Len() int                 { return len(t.nodes) }
func (t *Tree) Strategy() Strategy       { return t.strategy }
func (t *Tree) Simulations() int         { return t.simulations }
func (t *Tree) RolloutDepth() int        { return t.rolloutDepth }
func (t *Tree) Exploration() float64     { return t.exploration }
func (t *Tree) Rand() *rand.Rand         { return t.rng }
func (t *Tree) Environment() Environment { return t.env }

// Node returns the node with the given id. Callers must not retain it across
// a Reset.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

func (t *Tree) node(id NodeID) (*Node, error) {
	n := t.Node(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n, nil
}

func (t *Tree) newNode(parent NodeID, position game.Position, move game.Move, mover game.Color, prior float64, terminal bool, reward float64) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, &Node{
		id:       id,
		parent:   parent,
		position: position,
		move:     move,
		mover:    mover,
		prior:    prior,
		terminal: terminal,
		reward:   reward,
	})
	return id
}

// LegalMoves returns the moves available at a node. A non-terminal node
// whose action space turns out empty is marked terminal, keeping the reward
// it was created with.
func (t *Tree) LegalMoves(id NodeID) ([]game.Move, error) {
	n, err := t.node(id)
	if err != nil {
		return nil, err
	}
	if n.terminal {
		return nil, nil
	}
	if !n.legalKnown {
		legal, err := t.env.LegalMoves(n.position)
		if err != nil {
			return nil, fmt.Errorf("legal moves: %w", err)
		}
		n.legal = legal
		n.legalKnown = true
	}
	if len(n.legal) == 0 {
		n.terminal = true
		return nil, nil
	}
	return n.legal, nil
}

// UnexploredMoves returns the legal moves without a child, in legal order.
func (t *Tree) UnexploredMoves(id NodeID) ([]game.Move, error) {
	legal, err := t.LegalMoves(id)
	if err != nil {
		return nil, err
	}
	n := t.nodes[id]
	var unexplored []game.Move
	for _, move := range legal {
		if _, ok := n.childByMove(move, t.nodes); !ok {
			unexplored = append(unexplored, move)
		}
	}
	return unexplored, nil
}

func (t *Tree) IsFullyExpanded(id NodeID) (bool, error) {
	unexplored, err := t.UnexploredMoves(id)
	if err != nil {
		return false, err
	}
	return len(unexplored) == 0 || t.nodes[id].terminal, nil
}

// BestChildByScore returns the child with the highest score. Ties go to the
// child expanded first.
func (t *Tree) BestChildByScore(id NodeID, score ScoreFunc) (NodeID, error) {
	n, err := t.node(id)
	if err != nil {
		return 0, err
	}
	if len(n.children) == 0 {
		return 0, ErrNoChildren
	}

	best := n.children[0]
	bestScore, err := score(n, t.nodes[best])
	if err != nil {
		return 0, err
	}
	for _, child := range n.children[1:] {
		s, err := score(n, t.nodes[child])
		if err != nil {
			return 0, err
		}
		if s > bestScore {
			best, bestScore = child, s
		}
	}
	return best, nil
}

// MostVisitedChild returns the child with the most visits, ties going to the
// child expanded first.
func (t *Tree) MostVisitedChild(id NodeID) (NodeID, bool) {
	n := t.Node(id)
	if n == nil || len(n.children) == 0 {
		return 0, false
	}
	best := n.children[0]
	for _, child := range n.children[1:] {
		if t.nodes[child].visits > t.nodes[best].visits {
			best = child
		}
	}
	return best, true
}

// UpdateStatistics records one simulation result at a node. outcome is
// black-positive.
func (t *Tree) UpdateStatistics(id NodeID, outcome float64) error {
	n, err := t.node(id)
	if err != nil {
		return err
	}
	n.update(outcome)
	return nil
}

// PathToRoot lists id and its ancestors, ending at the root.
func (t *Tree) PathToRoot(id NodeID) []NodeID {
	var path []NodeID
	for n := t.Node(id); n != nil; n = t.Node(n.parent) {
		path = append(path, n.id)
	}
	return path
}

// Act plays move from a node: the environment is reset to the node's
// position and stepped. A move that already has a child returns that child
// with its prior replaced.
func (t *Tree) Act(id NodeID, move game.Move, prior float64) (NodeID, error) {
	n, err := t.node(id)
	if err != nil {
		return 0, err
	}
	if n.terminal {
		return 0, fmt.Errorf("act %s: %w", move, ErrTerminalNode)
	}
	legal, err := t.LegalMoves(id)
	if err != nil {
		return 0, err
	}
	if !contains(legal, move) {
		return 0, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}

	if child, ok := n.childByMove(move, t.nodes); ok {
		t.nodes[child].prior = prior
		return child, nil
	}

	position := n.position.Clone()
	if _, err := t.env.Reset(&position); err != nil {
		return 0, fmt.Errorf("reset environment: %w", err)
	}
	next, reward, done, err := t.env.Step(move)
	if err != nil {
		return 0, fmt.Errorf("step %s: %w", move, err)
	}

	mover := n.position.Player()
	child := t.newNode(id, next, move, mover, prior, done, reward*mover.Sign())
	n = t.nodes[id]
	n.children = append(n.children, child)
	return child, nil
}

// Find follows path from a node through already expanded children.
func (t *Tree) Find(from NodeID, path []game.Move) (NodeID, bool) {
	n := t.Node(from)
	if n == nil {
		return 0, false
	}
	for _, move := range path {
		child, ok := n.childByMove(move, t.nodes)
		if !ok {
			return 0, false
		}
		n = t.nodes[child]
	}
	return n.id, true
}

// Policy returns the share of visits of each child of a node.
func (t *Tree) Policy(id NodeID) map[game.Move]float64 {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	total := 0
	for _, child := range n.children {
		total += t.nodes[child].visits
	}
	policy := make(map[game.Move]float64, len(n.children))
	for _, child := range n.children {
		c := t.nodes[child]
		if total == 0 {
			policy[c.move] = 1 / float64(len(n.children))
		} else {
			policy[c.move] = float64(c.visits) / float64(total)
		}
	}
	return policy
}

// PickMove searches from a node and returns the most visited child's move.
// It returns false when the node has no legal moves; the node is then
// terminal.
func (t *Tree) PickMove(id NodeID) (Decision, bool, error) {
	legal, err := t.LegalMoves(id)
	if err != nil {
		return Decision{}, false, err
	}
	if len(legal) == 0 {
		return Decision{}, false, nil
	}

	if t.strategy.Kind() == Random {
		move := legal[t.rng.Intn(len(legal))]
		prior := 1 / float64(len(legal))
		child, err := t.Act(id, move, prior)
		if err != nil {
			return Decision{}, false, err
		}
		return Decision{Move: move, Prior: prior, Child: child}, true, nil
	}

	t.metrics.Start(t.strategy.Kind().String(), t.simulations, t.rolloutDepth)
	for i := 0; i < t.simulations; i++ {
		if err := t.simulate(id); err != nil {
			return Decision{}, false, fmt.Errorf("simulation %d: %w", i, err)
		}
		t.metrics.AddSimulation()
	}
	metric := t.metrics.Complete()
	t.metrics.SetTreeReset(false)

	best, ok := t.MostVisitedChild(id)
	if !ok {
		return Decision{}, false, fmt.Errorf("pick move: %w", ErrNoChildren)
	}
	child := t.nodes[best]
	log.Debug().Str("tree", t.id.String()).Msgf("picked %s with %d/%d visits after %d simulations", child.move, child.visits, t.nodes[id].visits, t.simulations)
	return Decision{
		Move:   child.move,
		Prior:  child.prior,
		Child:  best,
		Visits: child.visits,
		Metric: metric,
	}, true, nil
}

// Simulate plays a full game from a node by repeated PickMove and returns
// the node where the game ended.
func (t *Tree) Simulate(id NodeID) (NodeID, error) {
	current := id
	for {
		decision, ok, err := t.PickMove(current)
		if err != nil {
			return 0, err
		}
		if !ok {
			return current, nil
		}
		current = decision.Child
		if t.nodes[current].terminal {
			return current, nil
		}
	}
}

// simulate runs one selection, expansion, rollout and backpropagation pass.
// Statistics are only touched once the pass has a value.
func (t *Tree) simulate(id NodeID) error {
	leaf, err := t.traverse(id)
	if err != nil {
		return fmt.Errorf("traverse: %w", err)
	}
	end, truncated, err := t.rollout(leaf)
	if err != nil {
		return fmt.Errorf("rollout: %w", err)
	}
	value, err := t.value(end, truncated)
	if err != nil {
		return err
	}
	return t.backpropagate(leaf, value)
}

// traverse descends through fully expanded nodes by the strategy's score and
// expands the first node with unexplored moves.
func (t *Tree) traverse(id NodeID) (NodeID, error) {
	score := func(parent, child *Node) (float64, error) {
		return t.strategy.Score(parent, child, t.exploration)
	}

	current := id
	for {
		if t.nodes[current].terminal {
			return current, nil
		}
		unexplored, err := t.UnexploredMoves(current)
		if err != nil {
			return 0, err
		}
		if t.nodes[current].terminal { // Empty action space
			return current, nil
		}
		if len(unexplored) > 0 {
			move, prior, err := t.strategy.Expand(t.nodes[current], unexplored, t.rng)
			if err != nil {
				return 0, err
			}
			return t.Act(current, move, prior)
		}
		current, err = t.BestChildByScore(current, score)
		if err != nil {
			return 0, err
		}
	}
}

// rollout plays the rollout policy from a node until a terminal node or the
// depth cap. Nodes visited on the way are kept in the tree.
func (t *Tree) rollout(id NodeID) (end NodeID, truncated bool, err error) {
	current := id
	for depth := 0; ; depth++ {
		legal, err := t.LegalMoves(current)
		if err != nil {
			return 0, false, err
		}
		if t.nodes[current].terminal {
			t.metrics.AddFullPlayout()
			return current, false, nil
		}
		if depth >= t.rolloutDepth {
			t.metrics.AddTruncatedPlayout()
			return current, true, nil
		}
		move, prior, err := t.strategy.Rollout(t.nodes[current], legal, t.rng)
		if errors.Is(err, ErrDegenerateProbabilities) {
			// Treat the branch as exhausted
			log.Debug().Err(err).Msgf("rollout stopped at depth %d", depth)
			t.metrics.AddDegeneratePlayout()
			return current, true, nil
		}
		if err != nil {
			return 0, false, err
		}
		current, err = t.Act(current, move, prior)
		if err != nil {
			return 0, false, err
		}
	}
}

// value is the black-positive result of a rollout ending at a node.
func (t *Tree) value(id NodeID, truncated bool) (float64, error) {
	n := t.nodes[id]
	if n.terminal && !truncated {
		if t.strategy.Kind() == Guided {
			return clamp(n.Outcome()), nil // Same scale as evaluator values
		}
		return n.Outcome(), nil
	}
	v, err := t.strategy.LeafValue(n)
	if err != nil {
		return 0, fmt.Errorf("leaf value: %w", err)
	}
	return v, nil
}

func (t *Tree) backpropagate(id NodeID, value float64) error {
	for _, node := range t.PathToRoot(id) {
		if err := t.UpdateStatistics(node, value); err != nil {
			return err
		}
	}
	return nil
}

func contains(moves []game.Move, move game.Move) bool {
	for _, m := range moves {
		if m == move {
			return true
		}
	}
	return false
}
