package limelight_test

import (
	"math/rand"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/limelight/limelight"
)

func TestGeneratorTelemetry(t *testing.T) {
	t.Parallel()

	gen := limelight.NewGenerator(rand.NewSource(1))
	for _, board := range limelight.Boards() {
		tm, err := gen.Telemetry(board)
		require.NoError(t, err)
		n, _ := limelight.ValueCount(board)
		assert.Equal(t, n, tm.Len())
		assert.Equal(t, board, tm.Board())
		for _, v := range tm.Values() {
			assert.True(t, v >= 0 && v < 1, "v=%v", v)
		}
	}

	_, err := gen.Telemetry(4)
	assert.True(t, errors.IsNotValid(err))
	_, err = gen.Message(4)
	// may pick valve or heartbeat, those don't care about board
	if err != nil {
		assert.True(t, errors.IsNotValid(err))
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	t.Parallel()

	g1 := limelight.NewGenerator(rand.NewSource(99))
	g2 := limelight.NewGenerator(rand.NewSource(99))
	for i := 0; i < 20; i++ {
		m1, err := g1.Message(limelight.BoardBay1)
		require.NoError(t, err)
		m2, err := g2.Message(limelight.BoardBay1)
		require.NoError(t, err)
		assert.Equal(t, m1, m2)
	}
}

func TestGeneratorDistribution(t *testing.T) {
	t.Parallel()

	gen := limelight.NewGenerator(rand.NewSource(3))
	const total = 30000
	counts := make(map[limelight.Tag]int)
	for i := 0; i < total; i++ {
		m, err := gen.Message(limelight.BoardFlightComputer)
		require.NoError(t, err)
		counts[m.Tag()]++
	}
	for _, tag := range []limelight.Tag{limelight.TagTelemetry, limelight.TagValve, limelight.TagHeartbeat} {
		assert.InDelta(t, total/3, counts[tag], total*0.03, "tag=%s counts=%v", tag, counts)
	}
}
