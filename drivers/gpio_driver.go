//go:build linux

package drivers

import (
	"sync"
	"time"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

const (
	gpioDriverName  = "gpio"
	defaultGpioChip = "/dev/gpiochip0"
	gpioConsumer    = "greenenv-tally"
)

// GpIO is the Raspberry Pi pulse controller. Pin modes and the charge wave
// go through the memory mapped registers (go-rpio), edge tallies through the
// gpio character device so no edge is lost to polling.
type GpIO struct {
	ChipPath string
	PullUp   bool

	counters []*edgeCounter
	wavePins []rpio.Pin
	isReady  bool
}

type edgeCounter struct {
	pin   int
	edge  Edge
	line  *gpio.LineWithEvent
	tally *atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

func (c *edgeCounter) count() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.line.Events():
			if !ok {
				return
			}
			if c.edge.counts(event.RisingEdge) {
				c.tally.Inc()
			}
		}
	}
}

func (c *edgeCounter) Tally() int64 {
	return c.tally.Load()
}

func (c *edgeCounter) ResetTally() {
	c.tally.Store(0)
}

func (c *edgeCounter) Close() (err error) {
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.line.Close()
	})
	return
}

func checkPin(pin int) error {
	if pin < 0 || pin > 255 {
		return errors.Wrapf(ValidationError, "pin %d out of range (gpio takes uint8 pin)", pin)
	}
	return nil
}

// Open maps the GPIO registers. It is a no-op on an open controller.
func (gp *GpIO) Open() error {
	if gp.isReady {
		return nil
	}
	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "failed to open gpio driver")
	}
	if gp.ChipPath == "" {
		gp.ChipPath = defaultGpioChip
	}
	gp.isReady = true
	return nil
}

func (gp *GpIO) SetMode(pin int, mode PinMode) error {
	if !gp.isReady {
		return errors.Wrap(NotReadyError, "gpio driver not open")
	}
	if err := checkPin(pin); err != nil {
		return err
	}
	p := rpio.Pin(pin)
	switch mode {
	case PinOutput:
		p.Output()
	default:
		p.Input()
		if gp.PullUp {
			p.PullUp()
		}
	}
	return nil
}

// StartWave drives the pins from a hardware clock at 1/(2*pulse). Only the
// clock capable pins (4, 5, 6, 20, 21) can carry it.
func (gp *GpIO) StartWave(pins []int, pulse time.Duration) error {
	if !gp.isReady {
		return errors.Wrap(NotReadyError, "gpio driver not open")
	}
	if pulse <= 0 {
		return errors.Wrapf(ValidationError, "pulse must be positive, got %v", pulse)
	}
	for _, pin := range pins {
		if err := checkClockPin(pin); err != nil {
			return err
		}
	}
	freq := int(time.Second / (2 * pulse))
	for _, pin := range pins {
		p := rpio.Pin(pin)
		p.Mode(rpio.Clock)
		p.Freq(freq)
		gp.wavePins = append(gp.wavePins, p)
	}
	return nil
}

func (gp *GpIO) WatchEdges(pin int, edge Edge) (TallyCounter, error) {
	if !gp.isReady {
		return nil, errors.Wrap(NotReadyError, "gpio driver not open")
	}
	if err := checkPin(pin); err != nil {
		return nil, err
	}

	chip, err := gpio.OpenChip(gp.ChipPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open gpio chip %s", gp.ChipPath)
	}
	defer chip.Close()

	line, err := chip.OpenLineWithEvents(uint32(pin), gpio.Input, gpio.BothEdges, gpioConsumer)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to watch edges on pin %d", pin)
	}

	counter := &edgeCounter{
		pin:   pin,
		edge:  edge,
		line:  line,
		tally: atomic.NewInt64(0),
		done:  make(chan struct{}),
	}
	go counter.count()
	gp.counters = append(gp.counters, counter)
	return counter, nil
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return gp.isReady
}

func (gp *GpIO) Close() (err error) {
	if !gp.isReady {
		return nil
	}
	gp.isReady = false
	for _, p := range gp.wavePins {
		p.Input()
	}
	gp.wavePins = nil
	for _, counter := range gp.counters {
		err = multierr.Append(err, counter.Close())
	}
	gp.counters = nil
	return multierr.Append(err, rpio.Close())
}
