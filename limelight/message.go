package limelight

import (
	"fmt"
	"math"

	"github.com/juju/errors"
)

type Tag byte

const (
	TagTelemetry Tag = 0x01
	TagValve     Tag = 0x02
	TagHeartbeat Tag = 0x03
)

func (t Tag) String() string {
	switch t {
	case TagTelemetry:
		return "telemetry"
	case TagValve:
		return "valve"
	case TagHeartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("tag(0x%02x)", byte(t))
}

// Message is closed set of Telemetry, Valve, Heartbeat.
// Values are immutable, safe to share between goroutines.
type Message interface {
	Tag() Tag
	String() string

	sealed()
}

var (
	_ Message = Telemetry{}
	_ Message = Valve{}
	_ Message = Heartbeat{}
)

const (
	headerSize    = 1
	timestampSize = 8
	valueSize     = 4

	ValveSize     = headerSize + 4 + 4
	HeartbeatSize = headerSize
)

// TelemetrySize is total encoded length of Telemetry from board b.
func TelemetrySize(b BoardID) (int, error) {
	n, err := ValueCount(b)
	if err != nil {
		return 0, err
	}
	return headerSize + 1 + timestampSize + n*valueSize, nil
}

// Telemetry is periodic sensor snapshot from one board.
// Zero value is not valid, use NewTelemetry.
type Telemetry struct {
	board     BoardID
	timestamp uint64
	values    []float32
}

func NewTelemetry(board BoardID, timestamp uint64, values []float32) (Telemetry, error) {
	n, err := ValueCount(board)
	if err != nil {
		return Telemetry{}, err
	}
	if len(values) != n {
		return Telemetry{}, errors.NotValidf("board=%s values=%d expected=%d", board, len(values), n)
	}
	for i, v := range values {
		if !finite(v) {
			return Telemetry{}, errors.NotValidf("board=%s value[%d]=%v", board, i, v)
		}
	}
	own := make([]float32, n)
	copy(own, values)
	return Telemetry{board: board, timestamp: timestamp, values: own}, nil
}

func (Telemetry) Tag() Tag { return TagTelemetry }
func (Telemetry) sealed()  {}

func (t Telemetry) Board() BoardID      { return t.board }
func (t Telemetry) Timestamp() uint64   { return t.timestamp }
func (t Telemetry) Len() int            { return len(t.values) }
func (t Telemetry) Value(i int) float32 { return t.values[i] }

// Values returns a copy.
func (t Telemetry) Values() []float32 {
	vs := make([]float32, len(t.values))
	copy(vs, t.values)
	return vs
}

func (t Telemetry) String() string {
	return fmt.Sprintf("telemetry(board=%s time=%d values=%d)", t.board, t.timestamp, len(t.values))
}

// Equal compares field by field, values bitwise.
func (t Telemetry) Equal(other Telemetry) bool {
	if t.board != other.board || t.timestamp != other.timestamp || len(t.values) != len(other.values) {
		return false
	}
	for i := range t.values {
		if math.Float32bits(t.values[i]) != math.Float32bits(other.values[i]) {
			return false
		}
	}
	return true
}

func (t Telemetry) validate() error {
	n, err := ValueCount(t.board)
	if err != nil {
		return err
	}
	if len(t.values) != n {
		return errors.NotValidf("board=%s values=%d expected=%d", t.board, len(t.values), n)
	}
	return nil
}

type Valve struct {
	command uint32
	state   uint32
}

func NewValve(command, state uint32) Valve {
	return Valve{command: command, state: state}
}

func (Valve) Tag() Tag { return TagValve }
func (Valve) sealed()  {}

func (v Valve) Command() uint32 { return v.command }
func (v Valve) State() uint32   { return v.state }

func (v Valve) String() string {
	return fmt.Sprintf("valve(command=%08x state=%08x)", v.command, v.state)
}

type Heartbeat struct{}

func (Heartbeat) Tag() Tag       { return TagHeartbeat }
func (Heartbeat) sealed()        {}
func (Heartbeat) String() string { return "heartbeat" }

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
