package limelight_test

import (
	"bytes"
	"encoding/hex"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/limelight/limelight"
)

func TestEncodeExamples(t *testing.T) {
	t.Parallel()

	zeros47, err := limelight.NewTelemetry(limelight.BoardFlightComputer, 0, make([]float32, 47))
	require.NoError(t, err)
	ones52 := make([]float32, 52)
	for i := range ones52 {
		ones52[i] = 1
	}
	bay, err := limelight.NewTelemetry(limelight.BoardBay2, 0x0102030405060708, ones52)
	require.NoError(t, err)

	cases := []struct {
		name   string
		msg    limelight.Message
		expect string
	}{
		{"heartbeat", limelight.Heartbeat{}, "03"},
		{"valve", limelight.NewValve(0x00000001, 0xffffffff), "02" + "00000001" + "ffffffff"},
		{"valve-zero", limelight.NewValve(0, 0), "02" + "0000000000000000"},
		{"telemetry-fc-zero", zeros47, "01" + "00" + "0000000000000000" + strings.Repeat("00000000", 47)},
		{"telemetry-bay2-ones", bay, "01" + "02" + "0102030405060708" + strings.Repeat("3f800000", 52)},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			b, err := limelight.Encode(c.msg)
			require.NoError(t, err)
			assert.Equal(t, c.expect, hex.EncodeToString(b))
			size, err := limelight.Size(c.msg)
			require.NoError(t, err)
			assert.Equal(t, size, len(b))
		})
	}
}

func TestEncodeLength(t *testing.T) {
	t.Parallel()

	gen := limelight.NewGenerator(rand.NewSource(1))
	expect := map[limelight.BoardID]int{0: 198, 1: 218, 2: 218, 3: 218}
	for board, size := range expect {
		m, err := gen.Telemetry(board)
		require.NoError(t, err)
		b, err := limelight.Encode(m)
		require.NoError(t, err)
		assert.Equal(t, size, len(b), "board=%s", board)
	}
	b, err := limelight.Encode(gen.Valve())
	require.NoError(t, err)
	assert.Equal(t, 9, len(b))
	b, err = limelight.Encode(gen.Heartbeat())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, b)
}

func TestEncodeInvalid(t *testing.T) {
	t.Parallel()

	_, err := limelight.Encode(limelight.Telemetry{})
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err), "err=%v", err)

	_, err = limelight.Encode(nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))

	prefix := []byte{0xaa}
	out, err := limelight.Append(prefix, limelight.Telemetry{})
	require.Error(t, err)
	assert.Equal(t, prefix, out)
}

func TestAppend(t *testing.T) {
	t.Parallel()

	var b []byte
	var err error
	b, err = limelight.Append(b, limelight.Heartbeat{})
	require.NoError(t, err)
	b, err = limelight.Append(b, limelight.NewValve(7, 9))
	require.NoError(t, err)
	b, err = limelight.Append(b, limelight.Heartbeat{})
	require.NoError(t, err)
	assert.Equal(t, "03"+"020000000700000009"+"03", hex.EncodeToString(b))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	gen := limelight.NewGenerator(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		board := limelight.BoardID(i % 4)
		m, err := gen.Message(board)
		require.NoError(t, err)
		b, err := limelight.Encode(m)
		require.NoError(t, err)
		size, err := limelight.Size(m)
		require.NoError(t, err)
		require.Equal(t, size, len(b))

		m2, err := limelight.Decode(b)
		require.NoError(t, err, "b=%x", b)
		assert.Equal(t, m, m2)
		if tm, ok := m.(limelight.Telemetry); ok {
			assert.True(t, tm.Equal(m2.(limelight.Telemetry)))
		}
	}
}

func TestRoundTripExtremes(t *testing.T) {
	t.Parallel()

	values := make([]float32, 52)
	for i := range values {
		switch i % 4 {
		case 0:
			values[i] = math.MaxFloat32
		case 1:
			values[i] = -math.SmallestNonzeroFloat32
		case 2:
			values[i] = float32(math.Copysign(0, -1))
		case 3:
			values[i] = -123.456
		}
	}
	tm, err := limelight.NewTelemetry(limelight.BoardBay3, math.MaxUint64, values)
	require.NoError(t, err)
	b, err := limelight.Encode(tm)
	require.NoError(t, err)
	m, err := limelight.Decode(b)
	require.NoError(t, err)
	assert.True(t, tm.Equal(m.(limelight.Telemetry)))
	assert.Equal(t, uint64(math.MaxUint64), m.(limelight.Telemetry).Timestamp())

	v := limelight.NewValve(math.MaxUint32, 0)
	b, err = limelight.Encode(v)
	require.NoError(t, err)
	m, err = limelight.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, v, m)
}

func TestDecodeSuccess(t *testing.T) {
	t.Parallel()

	m, err := limelight.Decode([]byte{0x03})
	require.NoError(t, err)
	assert.Equal(t, limelight.Heartbeat{}, m)

	m, err = limelight.Decode(mustHex(t, "02 00000001 ffffffff"))
	require.NoError(t, err)
	require.IsType(t, limelight.Valve{}, m)
	assert.Equal(t, uint32(1), m.(limelight.Valve).Command())
	assert.Equal(t, uint32(0xffffffff), m.(limelight.Valve).State())

	m, err = limelight.Decode(mustHex(t, "01 00 00000000000000ff"+strings.Repeat("3f000000", 47)))
	require.NoError(t, err)
	require.IsType(t, limelight.Telemetry{}, m)
	tm := m.(limelight.Telemetry)
	assert.Equal(t, limelight.BoardFlightComputer, tm.Board())
	assert.Equal(t, uint64(255), tm.Timestamp())
	assert.Equal(t, 47, tm.Len())
	assert.Equal(t, float32(0.5), tm.Value(46))
}

func TestDecodeError(t *testing.T) {
	t.Parallel()

	fc := "01 00 0000000000000000" + strings.Repeat("00000000", 47)
	bay := "01 01 0000000000000000" + strings.Repeat("00000000", 52)
	cases := []struct {
		name   string
		hex    string
		expect error
	}{
		{"empty", "", limelight.ErrTruncated},
		{"tag-00", "00", limelight.ErrUnknownTag},
		{"tag-00-payload", "00 0102030405", limelight.ErrUnknownTag},
		{"tag-04", "04", limelight.ErrUnknownTag},
		{"tag-ff", "ff 00000000 00000000", limelight.ErrUnknownTag},
		{"heartbeat-trailing", "03 ff", limelight.ErrTrailingBytes},
		{"valve-empty", "02", limelight.ErrTruncated},
		{"valve-7", "02 00000000 000000", limelight.ErrTruncated},
		{"valve-9", "02 00000000 00000000 00", limelight.ErrTrailingBytes},
		{"telemetry-no-board", "01", limelight.ErrTruncated},
		{"telemetry-board-4", "01 04" + strings.Repeat("00", 216), limelight.ErrMalformed},
		{"telemetry-board-ff", "01 ff", limelight.ErrMalformed},
		{"telemetry-fc-short", fc[:len(fc)-2], limelight.ErrTruncated},
		{"telemetry-fc-trailing", fc + "00", limelight.ErrTrailingBytes},
		// board 1 needs 52 values, 47 is not enough
		{"telemetry-bay-as-fc", "01 01 0000000000000000" + strings.Repeat("00000000", 47), limelight.ErrTruncated},
		{"telemetry-fc-as-bay", "01 00" + bay[len("01 01"):], limelight.ErrTrailingBytes},
		{"telemetry-nan", "01 00 0000000000000000 7fc00000" + strings.Repeat("00000000", 46), limelight.ErrMalformed},
		{"telemetry-inf", "01 00 0000000000000000" + strings.Repeat("00000000", 46) + "ff800000", limelight.ErrMalformed},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			m, err := limelight.Decode(mustHex(t, c.hex))
			require.Error(t, err)
			assert.Nil(t, m)
			assert.Equal(t, c.expect, errors.Cause(err), "err=%v", err)
			assert.True(t, limelight.IsDecodeError(err))
		})
	}
}

func TestValveBoundary(t *testing.T) {
	t.Parallel()

	full := mustHex(t, "02 0000000000000000 00")
	for n := 0; n <= 8; n++ {
		_, err := limelight.Decode(full[:1+n])
		if n < 8 {
			assert.Equal(t, limelight.ErrTruncated, errors.Cause(err), "n=%d", n)
		} else {
			assert.NoError(t, err)
		}
	}
	_, err := limelight.Decode(full)
	assert.Equal(t, limelight.ErrTrailingBytes, errors.Cause(err))
	_, err = limelight.Decode(append(full, bytes.Repeat([]byte{0}, 10)...))
	assert.Equal(t, limelight.ErrTrailingBytes, errors.Cause(err))
}

func TestIsDecodeError(t *testing.T) {
	t.Parallel()

	assert.False(t, limelight.IsDecodeError(nil))
	assert.False(t, limelight.IsDecodeError(errors.New("other")))
	assert.False(t, limelight.IsDecodeError(errors.NotValidf("x")))
	assert.True(t, limelight.IsDecodeError(errors.Annotate(limelight.ErrMalformed, "ctx")))
}

func mustHex(t testing.TB, s string) []byte {
	b, err := hex.DecodeString(strings.Replace(s, " ", "", -1))
	require.NoError(t, err, "code error in test")
	return b
}
