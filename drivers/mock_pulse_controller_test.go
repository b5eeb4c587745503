package drivers

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func assertTally(t testing.TB, got, want int64) {
	t.Helper()

	if got != want {
		t.Errorf("tally: got %d want %d", got, want)
	}
}

func TestMockPulseControllerModes(t *testing.T) {
	mc := NewMockPulseController()

	_, found := mc.Mode(4)
	assertBools(t, found, false)

	mc.SetMode(4, PinOutput)
	mode, found := mc.Mode(4)
	assertBools(t, found, true)
	assertBools(t, mode == PinOutput, true)

	mc.SetMode(4, PinInput)
	mode, _ = mc.Mode(4)
	assertBools(t, mode == PinInput, true)
}

func TestMockPulseControllerPulse(t *testing.T) {
	mc := NewMockPulseController()

	// not watched yet
	mc.Pulse(17, 3)

	tally, err := mc.WatchEdges(17, RisingEdge)
	if err != nil {
		t.Fatal(err)
	}
	assertTally(t, tally.Tally(), 0)

	mc.Pulse(17, 5)
	mc.Pulse(17, 2)
	mc.Pulse(27, 9)
	assertTally(t, tally.Tally(), 7)

	tally.ResetTally()
	assertTally(t, tally.Tally(), 0)

	tally.Close()
	mc.Pulse(17, 4)
	assertTally(t, tally.Tally(), 0)
}

func TestMockPulseControllerWave(t *testing.T) {
	mc := NewMockPulseController()
	buf := &bytes.Buffer{}
	mc.MonitorChanges(buf)

	pins := []int{5, 6}
	if err := mc.StartWave(pins, 20*time.Microsecond); err != nil {
		t.Fatal(err)
	}
	pins[0] = 21

	gotPins, pulse := mc.Wave()
	if len(gotPins) != 2 || gotPins[0] != 5 || gotPins[1] != 6 {
		t.Errorf("got %v want [5 6]", gotPins)
	}
	if pulse != 20*time.Microsecond {
		t.Errorf("got %v want 20µs", pulse)
	}
	if !strings.Contains(buf.String(), "wave on pins [5 6]") {
		t.Errorf("monitor output missing wave: %q", buf.String())
	}
}

func TestMockPulseControllerWaveNeedsClockPin(t *testing.T) {
	mc := NewMockPulseController()

	err := mc.StartWave([]int{4, 17}, 20*time.Microsecond)
	assertBools(t, IsValidation(err), true)

	gotPins, _ := mc.Wave()
	if len(gotPins) != 0 {
		t.Errorf("got %v want no wave", gotPins)
	}
}

func TestMockPulseControllerClose(t *testing.T) {
	mc := NewMockPulseController()
	assertBools(t, mc.IsReady(), true)

	tally, _ := mc.WatchEdges(5, EitherEdge)
	mc.Close()
	assertBools(t, mc.IsReady(), false)
	assertBools(t, tally.(*MockTally).closed.Load(), true)

	_, err := mc.WatchEdges(5, EitherEdge)
	if err == nil {
		t.Error("watching a closed controller should fail")
	}
}

func TestMockPulseControllerSimulate(t *testing.T) {
	defer goleak.VerifyNone(t)

	mc := NewMockPulseController()
	tally, _ := mc.WatchEdges(17, RisingEdge)

	ctx, cancel := context.WithCancel(context.Background())
	mc.Simulate(ctx, 17, 1000)

	deadline := time.Now().Add(5 * time.Second)
	for tally.Tally() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tally.Tally() == 0 {
		t.Error("simulation produced no edges")
	}

	cancel()
	mc.Close()
}

func TestParseEdge(t *testing.T) {
	tests := map[string]Edge{
		"":        RisingEdge,
		"rising":  RisingEdge,
		"Falling": FallingEdge,
		"either":  EitherEdge,
		"both":    EitherEdge,
	}
	for name, want := range tests {
		got, err := ParseEdge(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if got != want {
			t.Errorf("%q: got %v want %v", name, got, want)
		}
	}

	if _, err := ParseEdge("sideways"); !IsValidation(err) {
		t.Errorf("got %v want validation error", err)
	}
}

func TestEdgeCounts(t *testing.T) {
	assertBools(t, RisingEdge.counts(true), true)
	assertBools(t, RisingEdge.counts(false), false)
	assertBools(t, FallingEdge.counts(true), false)
	assertBools(t, FallingEdge.counts(false), true)
	assertBools(t, EitherEdge.counts(true), true)
	assertBools(t, EitherEdge.counts(false), true)
}
