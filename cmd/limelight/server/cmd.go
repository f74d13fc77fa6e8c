package server

import (
	"context"
	"strings"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/limelight/cmd/limelight/subcmd"
	"github.com/temoto/limelight/log2"
	"github.com/temoto/limelight/tele/bridge"
	tele_config "github.com/temoto/limelight/tele/config"
	telenet "github.com/temoto/limelight/tele/net"
)

var Mod = subcmd.Mod{Name: "server", Usage: "accept board connections, reply heartbeat to every message", Main: Main}

func Main(ctx context.Context, config *tele_config.Config) error {
	log := log2.ContextValueLogger(ctx)
	ctx, cancel := subcmd.SignalContext(ctx, log)
	defer cancel()

	server, br, err := Start(ctx, log, config)
	if err != nil {
		return err
	}
	subcmd.SdNotify(log, daemon.SdNotifyReady)
	log.Infof("server running listen=%s", strings.Join(server.Addrs(), ","))

	<-ctx.Done()
	subcmd.SdNotify(log, daemon.SdNotifyStopping)
	err = server.Close()
	log.Infof("server stat=%s", server.Stat().String())
	if br != nil {
		br.Close()
		log.Infof("mqtt stat=%s", br.Stat().String())
	}
	return err
}

// Start server and optional MQTT bridge.
func Start(ctx context.Context, log *log2.Log, config *tele_config.Config) (*telenet.Server, *bridge.Bridge, error) {
	var br *bridge.Bridge
	opt := telenet.ServerOptions{Log: log}
	if config.Mqtt.Enabled {
		br = bridge.New(log, config.Mqtt, config.NetworkTimeout(), nil)
		if err := br.Start(); err != nil {
			return nil, nil, errors.Annotate(err, "mqtt bridge")
		}
		opt.OnMessage = br.OnMessage
	}

	server := telenet.NewServer(opt)
	lopt := telenet.ListenOptions{
		StreamURL:      config.Listen,
		NetworkTimeout: config.NetworkTimeout(),
	}
	if err := server.Listen(ctx, []telenet.ListenOptions{lopt}); err != nil {
		if br != nil {
			br.Close()
		}
		return nil, nil, errors.Annotate(err, "server listen")
	}
	return server, br, nil
}
