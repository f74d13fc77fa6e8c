// Support sub-commands in limelight application.
// It's simple but fine so far.
package subcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/limelight/log2"
	tele_config "github.com/temoto/limelight/tele/config"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(context.Context, *tele_config.Config) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

func SdNotify(log *log2.Log, s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context, log *log2.Log) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigch)
		select {
		case sig := <-sigch:
			log.Infof("signal=%v stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
