package limelight

import (
	"fmt"

	"github.com/juju/errors"
)

type BoardID uint8

const (
	BoardFlightComputer BoardID = 0
	BoardBay1           BoardID = 1
	BoardBay2           BoardID = 2
	BoardBay3           BoardID = 3

	BoardMax = BoardBay3
)

const (
	FlightComputerValues = 47
	BayBoardValues       = 52
)

func (b BoardID) Valid() bool { return b <= BoardMax }

func (b BoardID) String() string {
	switch b {
	case BoardFlightComputer:
		return "flight-computer"
	case BoardBay1, BoardBay2, BoardBay3:
		return fmt.Sprintf("bay%d", b)
	}
	return fmt.Sprintf("board(%d)", uint8(b))
}

// ValueCount is the single source of truth for Telemetry payload shape.
// Construction, encoding and decoding all go through it.
func ValueCount(b BoardID) (int, error) {
	switch {
	case b == BoardFlightComputer:
		return FlightComputerValues, nil
	case b.Valid():
		return BayBoardValues, nil
	}
	return 0, errors.NotValidf("board_id=%d", b)
}

// Boards returns all known board ids in ascending order.
func Boards() []BoardID {
	return []BoardID{BoardFlightComputer, BoardBay1, BoardBay2, BoardBay3}
}
