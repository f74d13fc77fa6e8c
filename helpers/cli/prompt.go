package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

type ExecFunc = func(line string)
type CompleteFunc = func(d prompt.Document) []prompt.Suggest

// MainLoop runs interactive prompt when stdin is a terminal,
// otherwise executes stdin line by line until EOF.
func MainLoop(tag string, exec ExecFunc, complete CompleteFunc) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(signalCh)
	go func() {
		for range signalCh {
			os.Exit(1)
		}
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(exec, complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return nil
	}
	return RunLines(os.Stdin, exec)
}

// RunLines feeds exec with trimmed non-empty lines.
func RunLines(r io.Reader, exec ExecFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(line)
	}
	return errors.Annotate(scanner.Err(), "read lines")
}

// FilterSuggest is prefix completion over fixed command list.
func FilterSuggest(suggests []prompt.Suggest) CompleteFunc {
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}
