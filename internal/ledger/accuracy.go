package ledger

import (
	"math"
	"sync"
)

// defaultAccuracy is assumed before any completed jobs exist to learn from.
const defaultAccuracy = 85.0

// historySize bounds how many completed jobs inform the rolling accuracy.
const historySize = 100

// Accuracy scores how close an estimate landed to the actual cost, as a
// percentage in [0, 100]. A zero actual cost scores 100: nothing was spent,
// so no estimate can be called wrong.
func Accuracy(estimated, actual float64) float64 {
	if actual == 0 {
		return 100
	}
	score := 100 - math.Abs(estimated-actual)/actual*100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Estimator tracks estimation accuracy over the most recent completed jobs
// and produces budget-padded estimates for new ones.
type Estimator struct {
	mu      sync.Mutex
	history []float64
	next    int
}

// NewEstimator creates an Estimator with an empty history.
func NewEstimator() *Estimator {
	return &Estimator{history: make([]float64, 0, historySize)}
}

// Observe records the outcome of one completed job.
func (e *Estimator) Observe(estimated, actual float64) {
	score := Accuracy(estimated, actual)

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) < historySize {
		e.history = append(e.history, score)
		return
	}
	e.history[e.next] = score
	e.next = (e.next + 1) % historySize
}

// RollingAccuracy returns the mean accuracy over the recent history, or the
// default when no jobs have completed yet.
func (e *Estimator) RollingAccuracy() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return defaultAccuracy
	}
	var sum float64
	for _, s := range e.history {
		sum += s
	}
	return sum / float64(len(e.history))
}

// PaddedEstimate inflates a raw estimate by the observed inaccuracy, so a
// historically optimistic estimator reserves proportionally more budget.
func (e *Estimator) PaddedEstimate(raw float64) float64 {
	accuracy := e.RollingAccuracy()
	if accuracy <= 0 {
		accuracy = 1
	}
	return raw * (100 / accuracy)
}
