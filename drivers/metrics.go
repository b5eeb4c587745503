package drivers

import (
	"github.com/hubertat/greenenv/metrics"
)

const subSystem = "drivers"

var (
	batchesTotal = metrics.MustRegisterCounterVec(subSystem,
		"batches_total",
		"Number of sample batches handed to a handler",
		"driver")
	absentReadingsTotal = metrics.MustRegisterCounterVec(subSystem,
		"absent_readings_total",
		"Number of readings reported as absent (not ready or disconnected sensor)",
		"driver")
	readErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"read_errors_total",
		"Number of failed sample reads",
		"driver")
	kernelModuleLoadsTotal = metrics.MustRegisterCounter(subSystem,
		"kernel_module_loads_total",
		"Number of kernel modules loaded with modprobe")
	lastTallyGauge = metrics.MustRegisterGaugeVec(subSystem,
		"last_tally",
		"Edge tally of the last completed sampling window",
		"pin")
)
