package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/limelight/cmd/limelight/boards"
	"github.com/temoto/limelight/cmd/limelight/decode"
	"github.com/temoto/limelight/cmd/limelight/server"
	"github.com/temoto/limelight/cmd/limelight/subcmd"
	"github.com/temoto/limelight/log2"
	tele_config "github.com/temoto/limelight/tele/config"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	server.Mod,
	boards.Mod,
	decode.Mod,
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "limelight.hcl", "config file, .hcl or .toml")
	cmdline.Usage = func() {
		fmt.Fprintf(cmdline.Output(), "Usage: %s [-config limelight.hcl] command\n\nCommands:\n", os.Args[0])
		for _, m := range modules {
			fmt.Fprintf(cmdline.Output(), "  %-8s %s\n", m.Name, m.Usage)
		}
		fmt.Fprintf(cmdline.Output(), "\nFlags:\n")
		cmdline.PrintDefaults()
	}
	_ = cmdline.Parse(os.Args[1:])
	configExplicit := false
	cmdline.Visit(func(f *flag.Flag) { configExplicit = configExplicit || f.Name == "config" })

	mod, err := subcmd.Parse(cmdline.Arg(0), modules)
	if err != nil {
		cmdline.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify(log, "start") {
		// under systemd, assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	fs, err := tele_config.NewOsFullReader(".")
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	names := []string{*flagConfig}
	if !configExplicit {
		if b, _ := fs.ReadAll(fs.Normalize(*flagConfig)); b == nil {
			log.Debugf("config %s not found, using defaults", *flagConfig)
			names = nil
		}
	}
	config := tele_config.MustReadConfig(log, fs, names...)
	if !config.LogDebug {
		log.SetLevel(log2.LInfo)
	}
	log.Debugf("config %s", config.String())

	ctx := context.WithValue(context.Background(), log2.ContextKey, log)
	if err := mod.Main(ctx, config); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
