package limelight

import (
	"encoding/binary"
	"math"

	"github.com/juju/errors"
)

// Size returns exact encoded length of m.
func Size(m Message) (int, error) {
	switch x := m.(type) {
	case Telemetry:
		return TelemetrySize(x.board)
	case Valve:
		return ValveSize, nil
	case Heartbeat:
		return HeartbeatSize, nil
	case nil:
		return 0, errors.NotValidf("message=nil")
	}
	panic("code error unhandled message type") // sealed
}

func Encode(m Message) ([]byte, error) {
	size, err := Size(m)
	if err != nil {
		return nil, err
	}
	return Append(make([]byte, 0, size), m)
}

// Append writes encoded m to the end of dst.
// On error dst is returned unchanged.
func Append(dst []byte, m Message) ([]byte, error) {
	switch x := m.(type) {
	case Telemetry:
		if err := x.validate(); err != nil {
			return dst, err
		}
		dst = append(dst, byte(TagTelemetry), byte(x.board))
		dst = appendUint64(dst, x.timestamp)
		for _, v := range x.values {
			dst = appendUint32(dst, math.Float32bits(v))
		}
		return dst, nil

	case Valve:
		dst = append(dst, byte(TagValve))
		dst = appendUint32(dst, x.command)
		dst = appendUint32(dst, x.state)
		return dst, nil

	case Heartbeat:
		return append(dst, byte(TagHeartbeat)), nil

	case nil:
		return dst, errors.NotValidf("message=nil")
	}
	panic("code error unhandled message type")
}

// Decode parses exactly one message, b must not contain anything else.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, errors.Annotate(ErrTruncated, "tag")
	}
	size, err := sizeFromHead(b)
	if err != nil {
		return nil, err
	}
	switch {
	case len(b) < size:
		return nil, errors.Annotatef(ErrTruncated, "%s need=%d have=%d", Tag(b[0]), size, len(b))
	case len(b) > size:
		return nil, errors.Annotatef(ErrTrailingBytes, "%s need=%d have=%d", Tag(b[0]), size, len(b))
	}
	return decodeExact(b)
}

// sizeFromHead computes full message length from the tag
// and, for Telemetry, board byte.
func sizeFromHead(head []byte) (int, error) {
	switch tag := Tag(head[0]); tag {
	case TagTelemetry:
		if len(head) < 2 {
			return 0, errors.Annotate(ErrTruncated, "telemetry board")
		}
		size, err := TelemetrySize(BoardID(head[1]))
		if err != nil {
			return 0, errors.Annotatef(ErrMalformed, "telemetry board=%d", head[1])
		}
		return size, nil

	case TagValve:
		return ValveSize, nil

	case TagHeartbeat:
		return HeartbeatSize, nil

	default:
		return 0, errors.Annotatef(ErrUnknownTag, "tag=0x%02x", byte(tag))
	}
}

// b length is already checked by sizeFromHead.
func decodeExact(b []byte) (Message, error) {
	switch Tag(b[0]) {
	case TagTelemetry:
		board := BoardID(b[1])
		n, _ := ValueCount(board)
		t := Telemetry{
			board:     board,
			timestamp: binary.BigEndian.Uint64(b[2:]),
			values:    make([]float32, n),
		}
		pos := headerSize + 1 + timestampSize
		for i := range t.values {
			v := math.Float32frombits(binary.BigEndian.Uint32(b[pos:]))
			if !finite(v) {
				return nil, errors.Annotatef(ErrMalformed, "telemetry board=%d value[%d]=%v", board, i, v)
			}
			t.values[i] = v
			pos += valueSize
		}
		return t, nil

	case TagValve:
		return Valve{
			command: binary.BigEndian.Uint32(b[1:]),
			state:   binary.BigEndian.Uint32(b[5:]),
		}, nil

	case TagHeartbeat:
		return Heartbeat{}, nil
	}
	panic("code error decodeExact unchecked tag")
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
