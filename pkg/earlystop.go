package pkg

import (
	"math"
	"time"
)

type stopReason int

const (
	keepTraining stopReason = iota
	stoppedEarly
	stoppedTimeLimit
	stoppedBestEpoch
)

func (r stopReason) String() string {
	switch r {
	case keepTraining:
		return "training"
	case stoppedEarly:
		return "early-stopped"
	case stoppedTimeLimit:
		return "time-exceeded"
	case stoppedBestEpoch:
		return "best-epoch-reached"
	}
	return "unknown"
}

type stopConfig struct {
	LowerIsBetter bool
	MinDelta      float64
	Patience      int

	// TimeLimit is the wall-clock training budget; zero disables it. The
	// budget is polled once per epoch, never mid-epoch.
	TimeLimit time.Duration

	// BestEpochStop forces training to halt exactly at the given epoch,
	// replicating an earlier run's stopping point during refit-full.
	// Negative disables the override.
	BestEpochStop int

	// MetricDriven disables improvement tracking and patience when false:
	// a refit-full validation partition aliases the training data and must
	// not drive early stopping.
	MetricDriven bool
}

// earlyStopping tracks the best observed metric across epochs and decides
// when training halts: metric plateau beyond the patience, exhausted time
// budget, or a forced best-epoch override.
type earlyStopping struct {
	cfg   stopConfig
	start time.Time

	best             float64
	bestEpoch        int
	sinceImprovement int
}

func newEarlyStopping(cfg stopConfig, now time.Time) *earlyStopping {
	best := math.Inf(1)
	if !cfg.LowerIsBetter {
		best = math.Inf(-1)
	}
	return &earlyStopping{cfg: cfg, start: now, best: best, bestEpoch: -1}
}

// timeExceeded reports whether the wall-clock budget is already exhausted.
// Checked before an epoch starts so that a fit with no remaining budget does
// not begin another epoch.
func (e *earlyStopping) timeExceeded(now time.Time) bool {
	return e.cfg.TimeLimit > 0 && now.Sub(e.start) >= e.cfg.TimeLimit
}

// observe records the end of an epoch and the metric measured on it. It
// reports whether the epoch improved on the best seen so far (and should be
// checkpointed) and whether training halts.
func (e *earlyStopping) observe(epoch int, metric float64, now time.Time) (improved bool, reason stopReason) {
	if e.cfg.MetricDriven {
		if e.cfg.LowerIsBetter {
			improved = metric < e.best-e.cfg.MinDelta
		} else {
			improved = metric > e.best+e.cfg.MinDelta
		}
		if improved {
			e.best = metric
			e.bestEpoch = epoch
			e.sinceImprovement = 0
		} else {
			e.sinceImprovement++
		}
	} else {
		// Refit mode: every epoch supersedes the last.
		improved = true
		e.bestEpoch = epoch
	}

	switch {
	case e.cfg.BestEpochStop >= 0 && epoch >= e.cfg.BestEpochStop:
		return improved, stoppedBestEpoch
	case e.cfg.MetricDriven && e.sinceImprovement >= e.cfg.Patience:
		return improved, stoppedEarly
	case e.timeExceeded(now):
		return improved, stoppedTimeLimit
	}
	return improved, keepTraining
}
