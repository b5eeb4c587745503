package drivers

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type pollState int

const (
	stateIdle pollState = iota
	stateSampling
	stateDelaying
	stateStopped
)

func (s pollState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSampling:
		return "sampling"
	case stateDelaying:
		return "delaying"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext blocks for d. Cancelling ctx is the only way to cut it short.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pollLoop drives sample -> handle -> delay until the budget is spent.
// It is not safe for concurrent use, one loop runs per driver at a time.
type pollLoop struct {
	driver string
	log    zerolog.Logger
	sample func(ctx context.Context) (Batch, error)
	delay  func(ctx context.Context) error

	onState func(pollState)
}

func (p *pollLoop) enter(s pollState) pollState {
	if p.onState != nil {
		p.onState(s)
	}
	return s
}

func (p *pollLoop) run(ctx context.Context, budget Budget, handler Handler, opts Options) error {
	if handler == nil {
		handler = PrintHandler(os.Stdout)
	}

	state := p.enter(stateIdle)
	p.log.Debug().Str("budget", budget.String()).Msg("poll started")
	for {
		switch state {
		case stateIdle:
			if budget.exhausted() {
				state = p.enter(stateStopped)
			} else {
				state = p.enter(stateSampling)
			}
		case stateSampling:
			batch, err := p.sample(ctx)
			if err != nil {
				readErrorsTotal.WithLabelValues(p.driver).Inc()
				return err
			}
			batchesTotal.WithLabelValues(p.driver).Inc()
			absentReadingsTotal.WithLabelValues(p.driver).Add(float64(batch.absentCount()))
			if err := handler.Handle(batch, opts); err != nil {
				return errors.Wrapf(err, "handler failed during %s poll", p.driver)
			}
			budget = budget.spend()
			state = p.enter(stateDelaying)
		case stateDelaying:
			if err := p.delay(ctx); err != nil {
				return err
			}
			if budget.exhausted() {
				state = p.enter(stateStopped)
			} else {
				state = p.enter(stateSampling)
			}
		case stateStopped:
			p.log.Debug().Msg("poll finished")
			return nil
		}
	}
}
