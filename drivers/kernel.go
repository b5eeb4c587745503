package drivers

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var wireKernelModules = []string{"w1-gpio", "w1-therm"}

type modprobeFunc func(ctx context.Context, module string) error

func runModprobe(ctx context.Context, module string) error {
	out, err := exec.CommandContext(ctx, "modprobe", module).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "modprobe %s: %s", module, strings.TrimSpace(string(out)))
	}
	return nil
}

type kernelLoader struct {
	mu       sync.Mutex
	loaded   bool
	modprobe modprobeFunc
}

var wireModules = &kernelLoader{modprobe: runModprobe}

func (kl *kernelLoader) load(ctx context.Context, modules []string) error {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if kl.loaded {
		return nil
	}
	for _, module := range modules {
		if err := kl.modprobe(ctx, module); err != nil {
			return errors.Wrap(err, "failed to load 1-wire kernel modules")
		}
		kernelModuleLoadsTotal.Inc()
	}
	kl.loaded = true
	return nil
}

// LoadKernelModules loads w1-gpio and w1-therm. It only runs modprobe until
// the first success, so calling it more than once is fine.
func LoadKernelModules(ctx context.Context) error {
	return wireModules.load(ctx, wireKernelModules)
}
