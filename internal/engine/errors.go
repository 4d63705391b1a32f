package engine

import "fmt"

// Kind classifies a pipeline fault.
type Kind string

const (
	MissingAsset  Kind = "missing_asset"
	RenderFailure Kind = "render_failure"
	SyncDrift     Kind = "sync_drift"
	EncodeFailure Kind = "encode_failure"
)

// Stage names the pipeline stage a fault originated in.
type Stage string

const (
	StageMotion     Stage = "motion"
	StageTransition Stage = "transition"
	StageTimeline   Stage = "timeline"
	StageAudio      Stage = "audio"
	StageMux        Stage = "mux"
)

// Fault is a classified pipeline error. MissingAsset and RenderFailure are
// recovered locally and only ever surface as warnings; SyncDrift is
// attached to the result as a warning; EncodeFailure is the one kind that
// can reach the caller, and only after the retry ladder is exhausted.
type Fault struct {
	Stage  Stage
	Kind   Kind
	Reason string
	Err    error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", f.Stage, f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s: %s", f.Stage, f.Kind, f.Reason)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func newFault(stage Stage, kind Kind, reason string, err error) *Fault {
	return &Fault{Stage: stage, Kind: kind, Reason: reason, Err: err}
}
