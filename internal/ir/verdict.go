package ir

// Reason names the rule that decided a Verdict.
type Reason string

const (
	ReasonNoDelta                   Reason = "no_delta"
	ReasonNoObservableChange        Reason = "no_observable_change"
	ReasonChangePrecedesAction      Reason = "change_precedes_action"
	ReasonChangeOutsideWindow       Reason = "change_outside_window"
	ReasonExcessiveChangeOutlier    Reason = "excessive_change_outlier"
	ReasonPlausibleWithinWindow     Reason = "plausible_within_window"
	ReasonCausalityEvaluatorFailure Reason = "causality_evaluator_failure"
)

// Reasons lists every Reason in rule priority order, the evaluator
// failure last.
func Reasons() []Reason {
	return []Reason{
		ReasonNoDelta,
		ReasonNoObservableChange,
		ReasonChangePrecedesAction,
		ReasonChangeOutsideWindow,
		ReasonExcessiveChangeOutlier,
		ReasonPlausibleWithinWindow,
		ReasonCausalityEvaluatorFailure,
	}
}

// Verdict is the attribution decision for one experiment.
type Verdict struct {
	Attributed bool   `json:"attributed"`
	Reason     Reason `json:"reason"`
}
