package decode

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/limelight/cmd/limelight/subcmd"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/helpers/cli"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
	tele_config "github.com/temoto/limelight/tele/config"
)

const modName = "decode"

const usage = `syntax:
- HEX                         decode message bytes
- heartbeat                   encode heartbeat
- valve COMMAND STATE         encode valve, numbers like 7, 0x07, 0b111
- telemetry BOARD [TIMESTAMP] encode telemetry with random values
- random BOARD                encode random message
`

var Mod = subcmd.Mod{Name: modName, Usage: "decode hex lines, encode text commands", Main: Main}

func Main(ctx context.Context, config *tele_config.Config) error {
	log := log2.ContextValueLogger(ctx)
	gen := limelight.NewGenerator(helpers.SeedUnix())
	return cli.MainLoop("limelight-"+modName, newExecutor(log, gen), newCompleter())
}

func newCompleter() cli.CompleteFunc {
	return cli.FilterSuggest([]prompt.Suggest{
		{Text: "heartbeat", Description: "encode heartbeat"},
		{Text: "valve", Description: "valve COMMAND STATE"},
		{Text: "telemetry", Description: "telemetry BOARD [TIMESTAMP]"},
		{Text: "random", Description: "random BOARD"},
		{Text: "help"},
	})
}

func newExecutor(log *log2.Log, gen *limelight.Generator) cli.ExecFunc {
	return func(line string) {
		out, err := Exec(line, gen)
		if err != nil {
			log.Error(err)
			return
		}
		log.Info(out)
	}
}

// Exec runs one line: hex input is decoded, command is encoded to hex.
func Exec(line string, gen *limelight.Generator) (string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	var m limelight.Message
	var err error
	switch strings.ToLower(parts[0]) {
	case "help", "?":
		return usage, nil

	case "heartbeat":
		m = limelight.Heartbeat{}

	case "valve":
		if len(parts) != 3 {
			return "", errors.NotValidf("usage: valve COMMAND STATE")
		}
		m, err = limelight.ParseValve(parts[1], parts[2])

	case "telemetry":
		m, err = parseTelemetry(parts[1:], gen)

	case "random":
		if len(parts) != 2 {
			return "", errors.NotValidf("usage: random BOARD")
		}
		var b limelight.BoardID
		if b, err = limelight.ParseBoard(parts[1]); err == nil {
			m, err = gen.Message(b)
		}

	default:
		return decodeHex(strings.Join(parts, ""))
	}
	if err != nil {
		return "", err
	}
	b, err := limelight.Encode(m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n%x", m.String(), b), nil
}

func parseTelemetry(args []string, gen *limelight.Generator) (limelight.Message, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errors.NotValidf("usage: telemetry BOARD [TIMESTAMP]")
	}
	board, err := limelight.ParseBoard(args[0])
	if err != nil {
		return nil, err
	}
	t, err := gen.Telemetry(board)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return t, nil
	}
	ts, err := limelight.ParseTimestamp(args[1])
	if err != nil {
		return nil, errors.Annotate(err, "timestamp")
	}
	return limelight.NewTelemetry(board, ts, t.Values())
}

func decodeHex(s string) (string, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s)%2 == 1 {
		// ambiguous: mosquitto_sub strips leading zero, or trailing nibble is lost
		return "", errors.NotValidf("hex odd length=%d, missing leading or trailing nibble", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.Annotate(err, "hex decode")
	}
	m, err := limelight.Decode(b)
	if err != nil {
		return "", err
	}
	if t, ok := m.(limelight.Telemetry); ok {
		return fmt.Sprintf("%s %v", t.String(), t.Values()), nil
	}
	return m.String(), nil
}
