package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedWindows feeds pulses[i] edges to every pin during the i-th window.
func scriptedWindows(mc *MockPulseController, pins []int, pulses ...int64) *sleepRecorder {
	rec := &sleepRecorder{}
	rec.onSleep = func(call int) {
		if call > len(pulses) {
			return
		}
		for _, pin := range pins {
			mc.Pulse(pin, pulses[call-1])
		}
	}
	return rec
}

func newTestGiesOMat(t *testing.T, pins []int, pulses ...int64) (*GiesOMat, *MockPulseController, *sleepRecorder) {
	t.Helper()
	mc := NewMockPulseController()
	g := NewGiesOMat(mc, pins...)
	rec := scriptedWindows(mc, pins, pulses...)
	g.sleep = rec.sleep
	require.NoError(t, g.Setup(context.Background()))
	return g, mc, rec
}

func TestGiesOMatDefaults(t *testing.T) {
	mc := NewMockPulseController()
	g := &GiesOMat{Pins: []int{17}}
	g.SetController(mc)
	require.NoError(t, g.Setup(context.Background()))

	assert.Equal(t, defaultPulse, g.Pulse)
	assert.Equal(t, defaultSampleRate, g.SampleRate)
	assert.Equal(t, 500*time.Millisecond, g.Window())
	assert.Equal(t, RisingEdge, g.Edge)
	assert.Equal(t, []string{"17"}, g.Endpoints())
	assert.True(t, g.IsReady())

	mode, found := mc.Mode(17)
	require.True(t, found)
	assert.Equal(t, PinInput, mode)

	// no wave pins, no wave
	pins, _ := mc.Wave()
	assert.Empty(t, pins)
}

func TestGiesOMatWave(t *testing.T) {
	mc := NewMockPulseController()
	g := NewGiesOMat(mc, 17)
	g.WavePins = []int{4}
	require.NoError(t, g.Setup(context.Background()))

	pins, pulse := mc.Wave()
	assert.Equal(t, []int{4}, pins)
	assert.Equal(t, 20*time.Microsecond, pulse)
}

func TestGiesOMatValidation(t *testing.T) {
	mc := NewMockPulseController()

	err := (&GiesOMat{}).Setup(context.Background())
	assert.True(t, IsConfiguration(err), "no controller")

	err = (&GiesOMat{controller: mc}).Setup(context.Background())
	assert.True(t, IsNoSensor(err), "no pins")

	err = (&GiesOMat{controller: mc, Pins: []int{17, 300}}).Setup(context.Background())
	assert.True(t, IsValidation(err), "pin out of range")

	g := NewGiesOMat(mc, 17)
	assert.True(t, IsValidation(g.SetPulse(0)))
	assert.True(t, IsValidation(g.SetSampleRate(-1)))
	assert.True(t, IsNoSensor(g.SetPins()))

	require.NoError(t, g.SetSampleRate(2))
	assert.Equal(t, 200*time.Millisecond, g.Window())
}

func TestGiesOMatTalliesDoNotAccumulate(t *testing.T) {
	pins := []int{17, 27}
	g, _, rec := newTestGiesOMat(t, pins, 5, 7)

	collector := &batchCollector{}
	require.NoError(t, g.Poll(context.Background(), Bounded(2), collector, nil))

	require.Len(t, collector.batches, 2)
	assert.Equal(t, Batch{Count(5), Count(5)}, collector.batches[0])
	assert.Equal(t, Batch{Count(7), Count(7)}, collector.batches[1])

	// prime window plus one window after every batch
	assert.Equal(t, []time.Duration{g.Window(), g.Window(), g.Window()}, rec.calls)
}

func TestGiesOMatWaitsBeforeFirstSample(t *testing.T) {
	g, _, rec := newTestGiesOMat(t, []int{17}, 3)

	sleptBeforeHandler := -1
	err := g.Poll(context.Background(), Bounded(1), HandlerFunc(func(Batch, Options) error {
		sleptBeforeHandler = len(rec.calls)
		return nil
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sleptBeforeHandler)
}

func TestGiesOMatGet(t *testing.T) {
	g, _, rec := newTestGiesOMat(t, []int{17}, 11, 4, 9)

	batches, err := g.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []Batch{{Count(11)}, {Count(4)}}, batches)
	assert.Len(t, rec.calls, 3)
}

func TestGiesOMatNotReady(t *testing.T) {
	g := NewGiesOMat(NewMockPulseController(), 17)
	_, err := g.Get(context.Background(), 1)
	assert.True(t, IsNotReady(err))
	assert.True(t, IsNotReady(g.Poll(context.Background(), Bounded(1), nil, nil)))
}

func TestGiesOMatResetReplacesCounters(t *testing.T) {
	g, mc, _ := newTestGiesOMat(t, []int{17})
	old := g.counters[0].TallyCounter.(*MockTally)

	require.NoError(t, g.SetPins(22))
	require.NoError(t, g.Reset(context.Background()))

	assert.True(t, old.closed.Load())
	assert.Equal(t, []string{"22"}, g.Endpoints())
	_, found := mc.Mode(22)
	assert.True(t, found)

	require.NoError(t, g.Close())
	assert.False(t, g.IsReady())
	assert.True(t, g.counters == nil)
}

func TestGiesOMatHandlerError(t *testing.T) {
	g, _, rec := newTestGiesOMat(t, []int{17}, 1, 1, 1)

	failure := errors.New("handler broke")
	err := g.Poll(context.Background(), Bounded(3), HandlerFunc(func(Batch, Options) error {
		return failure
	}), nil)
	require.Error(t, err)
	assert.Equal(t, failure, errors.Cause(err))
	assert.Len(t, rec.calls, 1)
}

func TestGiesOMatPollStopsOnCancel(t *testing.T) {
	g, _, _ := newTestGiesOMat(t, []int{17})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := g.PollForever(ctx, HandlerFunc(func(Batch, Options) error {
		calls++
		if calls == 4 {
			cancel()
		}
		return nil
	}), nil)

	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Equal(t, 4, calls)
}

func TestGiesOMatLastTallyGauge(t *testing.T) {
	g, _, _ := newTestGiesOMat(t, []int{31}, 42)

	_, err := g.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(42), testutil.ToFloat64(lastTallyGauge.WithLabelValues("31")))
}

func TestGiesOMatRealWindow(t *testing.T) {
	mc := NewMockPulseController()
	g := NewGiesOMat(mc, 17)
	require.NoError(t, g.SetSampleRate(1))
	require.NoError(t, g.Setup(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	mc.Simulate(ctx, 17, 1000)
	defer func() {
		cancel()
		mc.Close()
	}()

	start := time.Now()
	batches, err := g.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*g.Window())
	require.Len(t, batches, 1)
	assert.True(t, batches[0][0].Valid)
}

func TestGiesOMatSetPinsNeedsReset(t *testing.T) {
	g, mc, _ := newTestGiesOMat(t, []int{17, 27})

	require.NoError(t, g.SetPins(17))
	assert.False(t, g.IsReady())

	_, err := g.Get(context.Background(), 1)
	assert.True(t, IsNotReady(err))
	assert.True(t, IsNotReady(g.Poll(context.Background(), Bounded(1), nil, nil)))

	require.NoError(t, g.SetPins(44))
	require.NoError(t, g.Reset(context.Background()))
	g.sleep = func(ctx context.Context, _ time.Duration) error {
		mc.Pulse(44, 6)
		return ctx.Err()
	}

	batches, err := g.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"44"}, g.Endpoints())
	assert.Equal(t, []Batch{{Count(6)}}, batches)
	assert.Equal(t, float64(6), testutil.ToFloat64(lastTallyGauge.WithLabelValues("44")))
}
