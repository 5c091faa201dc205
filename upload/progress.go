package upload

import (
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// progressStep is the percentage the reported progress has to advance by before it is logged again.
const progressStep = 10

// progressReporter sums the chunk sizes of a file upload and logs the running total.
type progressReporter struct {
	logger   log.Logger
	name     string
	total    int64
	uploaded int64
	logged   int64
}

func newProgressReporter(logger log.Logger, name string, total int64) *progressReporter {
	return &progressReporter{
		logger: logger,
		name:   name,
		total:  total,
		logged: -progressStep,
	}
}

// run consumes the progress channel until it is closed and returns the number of bytes reported.
func (r *progressReporter) run(progress <-chan int64) int64 {
	for size := range progress {
		r.add(size)
	}
	return r.uploaded
}

func (r *progressReporter) add(size int64) {
	r.uploaded += size

	percent := r.percent()
	if percent < r.logged+progressStep && r.uploaded < r.total {
		return
	}
	r.logged = percent
	r.logger.Printf("%s: %s / %s (%d%%)", r.name,
		units.HumanSizeWithPrecision(float64(r.uploaded), 3),
		units.HumanSizeWithPrecision(float64(r.total), 3),
		percent)
}

func (r *progressReporter) percent() int64 {
	if r.total <= 0 {
		return 100
	}
	return r.uploaded * 100 / r.total
}
