package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Strategy           string
	Simulations        int
	RolloutDepth       int
	Duration           time.Duration
	Completed          int // Simulations that ran to backpropagation
	FullPlayouts       int // Rollouts that reached a terminal node
	TruncatedPlayouts  int // Rollouts stopped by the depth cap
	DegeneratePlayouts int // Rollouts stopped by an unusable move distribution
	IsTreeReset        bool
}

type MoveMetric struct {
	Step   int
	Player string
	SearchMetric
}

type GameMetric struct {
	StartingPlayer string
	Winner         string // Empty for a draw
	Reward         float64
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalMoves     int
}

// Collector receives events from a single search. Implementations must be
// safe to call from the search loop at high frequency.
type Collector interface {
	Start(strategy string, simulations, rolloutDepth int)
	SetTreeReset(value bool)
	AddSimulation()
	AddFullPlayout()
	AddTruncatedPlayout()
	AddDegeneratePlayout()
	Complete() SearchMetric
}

type collector struct {
	strategy     string
	simulations  int
	rolloutDepth int
	startTime    time.Time
	completed    atomic.Int32
	fullPlayouts atomic.Int32
	truncated    atomic.Int32
	degenerate   atomic.Int32
	isTreeReset  atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) SetTreeReset(value bool) {
	m.isTreeReset.Store(value)
}

// Start begins a new search and clears the counters of the previous one.
func (m *collector) Start(strategy string, simulations, rolloutDepth int) {
	m.startTime = time.Now()
	m.strategy = strategy
	m.simulations = simulations
	m.rolloutDepth = rolloutDepth
	m.completed.Store(0)
	m.fullPlayouts.Store(0)
	m.truncated.Store(0)
	m.degenerate.Store(0)
}

func (m *collector) AddSimulation() {
	m.completed.Add(1)
}

func (m *collector) AddFullPlayout() {
	m.fullPlayouts.Add(1)
}

func (m *collector) AddTruncatedPlayout() {
	m.truncated.Add(1)
}

func (m *collector) AddDegeneratePlayout() {
	m.degenerate.Add(1)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Strategy:           m.strategy,
		Simulations:        m.simulations,
		RolloutDepth:       m.rolloutDepth,
		Duration:           time.Since(m.startTime),
		Completed:          int(m.completed.Load()),
		FullPlayouts:       int(m.fullPlayouts.Load()),
		TruncatedPlayouts:  int(m.truncated.Load()),
		DegeneratePlayouts: int(m.degenerate.Load()),
		IsTreeReset:        m.isTreeReset.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(strategy string, simulations, rolloutDepth int) {}
func (m *dummyCollector) SetTreeReset(value bool)                             {}
func (m *dummyCollector) AddSimulation()                                      {}
func (m *dummyCollector) AddFullPlayout()                                     {}
func (m *dummyCollector) AddTruncatedPlayout()                                {}
func (m *dummyCollector) AddDegeneratePlayout()                               {}
func (m *dummyCollector) Complete() SearchMetric                              { return SearchMetric{} }
