// Package causality decides whether an observed change can be attributed
// to an action.
//
// The decision is a sanity gate, not proof: it rejects attributions whose
// timing or magnitude is implausible and accepts everything else. Rules
// are evaluated in a fixed order and the first match wins.
package causality

import (
	"fmt"
	"math"

	"github.com/Architect8989/EME/internal/ir"
)

// DefaultMaxExpectedChange is the largest changed fraction still
// considered plausible for a single primitive action.
const DefaultMaxExpectedChange = 0.25

// Window is the action's execution interval in monotonic seconds.
type Window struct {
	Start float64
	End   float64
}

// Evaluator carries a change threshold. The zero value uses
// DefaultMaxExpectedChange.
type Evaluator struct {
	MaxExpectedChange float64
}

// Evaluate applies the evaluator's threshold; see the package function.
func (e Evaluator) Evaluate(d *ir.Delta, w Window, preTS, postTS float64) ir.Verdict {
	return Evaluate(d, w, preTS, postTS, e.MaxExpectedChange)
}

// Evaluate maps a delta and timing to a verdict. It never fails: a panic
// while evaluating yields causality_evaluator_failure.
//
// A threshold that is not a positive finite number is replaced by
// DefaultMaxExpectedChange.
func Evaluate(d *ir.Delta, w Window, preTS, postTS, maxExpectedChange float64) (v ir.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = ir.Verdict{Attributed: false, Reason: ir.ReasonCausalityEvaluatorFailure}
		}
	}()
	return decide(d, w, preTS, postTS, threshold(maxExpectedChange))
}

func threshold(t float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
		return DefaultMaxExpectedChange
	}
	return t
}

func decide(d *ir.Delta, w Window, preTS, postTS, limit float64) ir.Verdict {
	if d == nil {
		return reject(ir.ReasonNoDelta)
	}

	changed, ok := d.PixelsChanged()
	if !ok || changed == 0 {
		return reject(ir.ReasonNoObservableChange)
	}

	if postTS < w.Start {
		return reject(ir.ReasonChangePrecedesAction)
	}

	pct, ok := d.PercentChanged()
	if !ok {
		// A count without a fraction is a malformed delta.
		panic(fmt.Sprintf("delta has pixels_changed=%d but no percent_changed", changed))
	}

	if preTS > w.End && pct > 0 {
		return reject(ir.ReasonChangeOutsideWindow)
	}

	if pct > limit {
		return reject(ir.ReasonExcessiveChangeOutlier)
	}

	return ir.Verdict{Attributed: true, Reason: ir.ReasonPlausibleWithinWindow}
}

func reject(r ir.Reason) ir.Verdict {
	return ir.Verdict{Attributed: false, Reason: r}
}
