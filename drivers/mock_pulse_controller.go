package drivers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const mockControllerName = "mock_controller"

type MockTally struct {
	pin    int
	edge   Edge
	tally  *atomic.Int64
	closed *atomic.Bool
}

func (mt *MockTally) Tally() int64 {
	return mt.tally.Load()
}

func (mt *MockTally) ResetTally() {
	mt.tally.Store(0)
}

func (mt *MockTally) Close() error {
	mt.closed.Store(true)
	return nil
}

// MockPulseController is an in-memory PulseController. Edges are fed with
// Pulse or a simulated oscillator started by Simulate.
type MockPulseController struct {
	mu       sync.Mutex
	modes    map[int]PinMode
	tallies  map[int]*MockTally
	wavePins []int
	pulse    time.Duration
	ready    bool

	writeTo io.Writer
	wg      sync.WaitGroup
}

func NewMockPulseController() *MockPulseController {
	return &MockPulseController{
		modes:   make(map[int]PinMode),
		tallies: make(map[int]*MockTally),
		ready:   true,
	}
}

func (mc *MockPulseController) SetMode(pin int, mode PinMode) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.modes[pin] = mode
	if mc.writeTo != nil {
		fmt.Fprintf(mc.writeTo, "[pin %d] mode set to %v\n", pin, mode)
	}
	return nil
}

func (mc *MockPulseController) Mode(pin int) (mode PinMode, found bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mode, found = mc.modes[pin]
	return
}

func (mc *MockPulseController) StartWave(pins []int, pulse time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, pin := range pins {
		if err := checkClockPin(pin); err != nil {
			return err
		}
	}

	mc.wavePins = append([]int(nil), pins...)
	mc.pulse = pulse
	if mc.writeTo != nil {
		fmt.Fprintf(mc.writeTo, "wave on pins %v with %v pulse\n", pins, pulse)
	}
	return nil
}

func (mc *MockPulseController) Wave() (pins []int, pulse time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return append([]int(nil), mc.wavePins...), mc.pulse
}

func (mc *MockPulseController) WatchEdges(pin int, edge Edge) (TallyCounter, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.ready {
		return nil, fmt.Errorf("mock controller closed")
	}
	tally := &MockTally{
		pin:    pin,
		edge:   edge,
		tally:  atomic.NewInt64(0),
		closed: atomic.NewBool(false),
	}
	mc.tallies[pin] = tally
	return tally, nil
}

// Pulse registers n edges on pin. Edges on unwatched or closed pins are lost.
func (mc *MockPulseController) Pulse(pin int, n int64) {
	mc.mu.Lock()
	tally, found := mc.tallies[pin]
	mc.mu.Unlock()

	if found && !tally.closed.Load() {
		tally.tally.Add(n)
	}
}

// Simulate feeds pin with hz edges per second until ctx is done.
func (mc *MockPulseController) Simulate(ctx context.Context, pin int, hz int64) {
	const step = 10 * time.Millisecond
	perStep := hz * int64(step) / int64(time.Second)

	mc.wg.Add(1)
	go func() {
		defer mc.wg.Done()
		ticker := time.NewTicker(step)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.Pulse(pin, perStep)
			}
		}
	}()
}

func (mc *MockPulseController) MonitorChanges(writer io.Writer) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.writeTo = writer
}

func (mc *MockPulseController) String() string {
	return mockControllerName
}

func (mc *MockPulseController) IsReady() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.ready
}

// Close waits for running simulations, cancel their context first.
func (mc *MockPulseController) Close() error {
	mc.wg.Wait()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ready = false
	for _, tally := range mc.tallies {
		tally.Close()
	}
	return nil
}
