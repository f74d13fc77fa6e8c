package boards

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/limelight/cmd/limelight/subcmd"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
	"github.com/temoto/limelight/tele/board"
	tele_config "github.com/temoto/limelight/tele/config"
	telenet "github.com/temoto/limelight/tele/net"
)

var Mod = subcmd.Mod{Name: "boards", Usage: "run configured boards against server", Main: Main}

func Main(ctx context.Context, config *tele_config.Config) error {
	log := log2.ContextValueLogger(ctx)
	ctx, cancel := subcmd.SignalContext(ctx, log)
	defer cancel()

	results, err := Run(ctx, log, config, limelight.NewGenerator(helpers.SeedUnix()))
	for i := range results {
		log.Infof("%s", results[i].String())
	}
	return err
}

// Run connects one client per configured board and runs them concurrently.
func Run(ctx context.Context, log *log2.Log, config *tele_config.Config, gen *limelight.Generator) ([]board.Result, error) {
	opts := make([]board.Options, 0, len(config.Boards))
	for i := range config.Boards {
		bc := &config.Boards[i]
		cli, err := telenet.NewClient(&telenet.ClientOptions{
			ConnOptions: telenet.ConnOptions{
				Log:            log,
				NetworkTimeout: config.NetworkTimeout(),
			},
			Board:     bc.Board(),
			Keepalive: config.Keepalive(),
			StreamURL: config.Connect,
		})
		if err != nil {
			return nil, errors.Annotatef(err, "board=%d", bc.Id)
		}
		defer func() {
			_ = cli.Close()
			log.Debugf("board=%s stat=%s", cli.Board(), cli.Stat().String())
		}()
		opts = append(opts, board.Options{
			Client:    cli,
			Generator: gen,
			Interval:  bc.Interval(),
			Count:     bc.Count,
			Log:       log,
		})
	}
	return board.RunAll(ctx, opts)
}
