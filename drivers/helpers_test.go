package drivers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	probeA = "28-00000a1b2c3d"
	probeB = "28-00000d4e5f60"
	probeC = "28-0000112233ff"
)

func w1Record(flag string, milli string) string {
	return "72 01 4b 46 7f ff 0e 10 57 : crc=57 " + flag + "\n" +
		"72 01 4b 46 7f ff 0e 10 57 t=" + milli + "\n"
}

// makeW1Tree builds a fake /sys/bus/w1/devices with the given slaves. A bus
// master entry and a directory without data file are added to be skipped.
func makeW1Tree(t *testing.T, probes map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	master := filepath.Join(dir, "w1_bus_master1")
	require.NoError(t, os.Mkdir(master, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(master, w1SlaveFile), []byte("bogus"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "00-400000000000"), 0o755))

	for id, content := range probes {
		require.NoError(t, os.Mkdir(filepath.Join(dir, id), 0o755))
		writeProbe(t, dir, id, content)
	}
	return dir
}

func writeProbe(t *testing.T, dir, id, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id, w1SlaveFile), []byte(content), 0o644))
}

type sleepRecorder struct {
	calls   []time.Duration
	onSleep func(call int)
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	if r.onSleep != nil {
		r.onSleep(len(r.calls))
	}
	return ctx.Err()
}

type batchCollector struct {
	batches []Batch
	opts    []Options
}

func (c *batchCollector) Handle(batch Batch, opts Options) error {
	c.batches = append(c.batches, batch)
	c.opts = append(c.opts, opts)
	return nil
}
