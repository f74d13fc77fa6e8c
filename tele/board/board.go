// Package board drives simulated board sessions against a ground server.
// Each iteration sends one random message, waits for reply and pauses.
package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
)

const (
	DefaultInterval = 10 * time.Millisecond
	DefaultCount    = 1000
)

// Transactor is satisfied by *telenet.Client.
type Transactor interface {
	Board() limelight.BoardID
	Tx(context.Context, limelight.Message) (limelight.Message, error)
}

type Options struct {
	Client    Transactor
	Generator *limelight.Generator // nil: seeded from time
	Interval  time.Duration
	Count     int
	Log       *log2.Log
}

type Result struct {
	Board     limelight.BoardID
	Telemetry int
	Valve     int
	Heartbeat int
	Replies   int
	Elapsed   time.Duration
}

func (r *Result) Sent() int { return r.Telemetry + r.Valve + r.Heartbeat }

func (r *Result) String() string {
	return fmt.Sprintf("board=%s sent=%d (telemetry=%d valve=%d heartbeat=%d) replies=%d elapsed=%s",
		r.Board, r.Sent(), r.Telemetry, r.Valve, r.Heartbeat, r.Replies, r.Elapsed)
}

func (r *Result) count(m limelight.Message) {
	switch m.Tag() {
	case limelight.TagTelemetry:
		r.Telemetry++
	case limelight.TagValve:
		r.Valve++
	case limelight.TagHeartbeat:
		r.Heartbeat++
	}
}

// Run executes one board session. Result is valid even with error.
func Run(ctx context.Context, opt Options) (r Result, err error) {
	if opt.Client == nil {
		return Result{}, errors.NotValidf("code error board Run Client=nil")
	}
	if opt.Interval == 0 {
		opt.Interval = DefaultInterval
	}
	if opt.Count == 0 {
		opt.Count = DefaultCount
	}
	if opt.Generator == nil {
		opt.Generator = limelight.NewGenerator(helpers.SeedUnix())
	}

	board := opt.Client.Board()
	r.Board = board
	started := time.Now()
	defer func() { r.Elapsed = time.Since(started) }()
	opt.Log.Infof("board %s start count=%d interval=%s", board, opt.Count, opt.Interval)

	for i := 0; i < opt.Count; i++ {
		var m, reply limelight.Message
		if m, err = opt.Generator.Message(board); err != nil {
			return r, errors.Annotatef(err, "board %s generate", board)
		}
		if reply, err = opt.Client.Tx(ctx, m); err != nil {
			return r, errors.Annotatef(err, "board %s tx i=%d", board, i)
		}
		r.count(m)
		if reply == nil || reply.Tag() != limelight.TagHeartbeat {
			return r, errors.Errorf("board %s unexpected reply=%v to %s", board, reply, m.String())
		}
		r.Replies++

		if i+1 < opt.Count {
			if err = sleep(ctx, opt.Interval); err != nil {
				return r, err
			}
		}
	}
	opt.Log.Infof("board %s done %s", board, time.Since(started))
	return r, nil
}

// RunAll runs boards concurrently. Results order matches opts.
func RunAll(ctx context.Context, opts []Options) ([]Result, error) {
	results := make([]Result, len(opts))
	errs := make([]error, len(opts))
	var wg sync.WaitGroup
	wg.Add(len(opts))
	for i := range opts {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Run(ctx, opts[i])
		}(i)
	}
	wg.Wait()
	return results, helpers.FoldErrors(errs)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
