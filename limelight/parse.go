package limelight

import (
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// ParseValve builds Valve from text, numbers in any strconv base prefix form.
// Values not fitting 32 bits are rejected.
func ParseValve(command, state string) (Valve, error) {
	c, err := parseUint(command, 32)
	if err != nil {
		return Valve{}, errors.Annotate(err, "command")
	}
	s, err := parseUint(state, 32)
	if err != nil {
		return Valve{}, errors.Annotate(err, "state")
	}
	return NewValve(uint32(c), uint32(s)), nil
}

// ParseBoard accepts decimal board id.
func ParseBoard(s string) (BoardID, error) {
	u, err := parseUint(s, 8)
	if err != nil {
		return 0, errors.Annotate(err, "board")
	}
	b := BoardID(u)
	if !b.Valid() {
		return 0, errors.NotValidf("board_id=%d", u)
	}
	return b, nil
}

// ParseTimestamp accepts unsigned 64 bit number.
func ParseTimestamp(s string) (uint64, error) {
	return parseUint(s, 64)
}

func parseUint(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(s)
	u, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errors.NotValidf("value=%s out of range uint%d", s, bits)
		}
		return 0, errors.NotValidf("value=%q", s)
	}
	return u, nil
}
