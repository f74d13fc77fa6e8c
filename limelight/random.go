package limelight

import (
	"math/rand"
	"sync"
)

// Generator produces random valid messages for test traffic.
// Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Telemetry with uniform 64 bit timestamp and values in [0,1).
func (g *Generator) Telemetry(board BoardID) (Telemetry, error) {
	n, err := ValueCount(board)
	if err != nil {
		return Telemetry{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t := Telemetry{
		board:     board,
		timestamp: g.rnd.Uint64(),
		values:    make([]float32, n),
	}
	for i := range t.values {
		t.values[i] = g.rnd.Float32()
	}
	return t, nil
}

func (g *Generator) Valve() Valve {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Valve{command: g.rnd.Uint32(), state: g.rnd.Uint32()}
}

func (g *Generator) Heartbeat() Heartbeat { return Heartbeat{} }

// Message picks Telemetry, Valve or Heartbeat with equal probability.
func (g *Generator) Message(board BoardID) (Message, error) {
	g.mu.Lock()
	kind := g.rnd.Intn(3)
	g.mu.Unlock()
	switch kind {
	case 0:
		return g.Telemetry(board)
	case 1:
		return g.Valve(), nil
	default:
		return g.Heartbeat(), nil
	}
}
