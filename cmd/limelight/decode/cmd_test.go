package decode

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/limelight/limelight"
)

func TestExec(t *testing.T) {
	t.Parallel()
	cases := []struct {
		line      string
		expect    string
		expectErr string
	}{
		{"", "", ""},
		{"03", "heartbeat", ""},
		{"3", "", "hex odd length=1"},
		{"02000000010000000", "", "hex odd length=17"},
		{"0x03", "heartbeat", ""},
		{"02 00000001 ffffffff", "valve(command=00000001 state=ffffffff)", ""},
		{"heartbeat", "heartbeat\n03", ""},
		{"valve 1 0xffffffff", "valve(command=00000001 state=ffffffff)\n0200000001ffffffff", ""},
		{"VALVE 0b11 0", "valve(command=00000003 state=00000000)\n020000000300000000", ""},
		{"valve 1", "", "usage: valve"},
		{"valve 0x100000000 0", "", "out of range"},
		{"telemetry 4", "", "board_id=4 not valid"},
		{"telemetry", "", "usage: telemetry"},
		{"random 9", "", "not valid"},
		{"zz", "", "hex decode"},
		{"00", "", "unknown tag"},
		{"0203", "", "truncated"},
		{"0300", "", "trailing bytes"},
		{"help", "syntax:", ""},
	}
	gen := limelight.NewGenerator(rand.NewSource(1))
	for _, c := range cases {
		c := c
		t.Run(c.line, func(t *testing.T) {
			out, err := Exec(c.line, gen)
			if c.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
				return
			}
			require.NoError(t, err)
			if c.expect == "" {
				assert.Equal(t, "", out)
			} else {
				assert.True(t, strings.HasPrefix(out, c.expect), "out=%s", out)
			}
		})
	}
}

func TestExecTelemetryRoundTrip(t *testing.T) {
	t.Parallel()
	gen := limelight.NewGenerator(rand.NewSource(2))
	out, err := Exec("telemetry 0 12345", gen)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Equal(t, 2, len(lines))
	assert.Equal(t, "telemetry(board=flight-computer time=12345 values=47)", lines[0])
	assert.Equal(t, 198*2, len(lines[1]))

	decoded, err := Exec(lines[1], gen)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(decoded, lines[0]), "decoded=%s", decoded)
}

func TestExecRandom(t *testing.T) {
	t.Parallel()
	gen := limelight.NewGenerator(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		out, err := Exec("random 2", gen)
		require.NoError(t, err)
		lines := strings.Split(out, "\n")
		require.Equal(t, 2, len(lines))
		_, err = Exec(lines[1], gen)
		assert.NoError(t, err)
	}
	_, err := Exec("random", gen)
	assert.True(t, errors.IsNotValid(err))
}
