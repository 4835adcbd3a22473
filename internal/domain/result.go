package domain

// Status is the per-target outcome of applying one digest.
type Status string

const (
	StatusUpdated        Status = "updated"
	StatusNoop           Status = "noop"
	StatusNoopIdempotent Status = "noop-idempotent"
	StatusStarted        Status = "started"
	StatusError          Status = "error"
)

// Result is one target's outcome within an invocation. Version and Alias
// are set only when the update strategy published them.
type Result struct {
	Target         string `json:"target"`
	Status         Status `json:"status"`
	Error          string `json:"error,omitempty"`
	PreviousDigest string `json:"previousDigest,omitempty"`
	NewDigest      string `json:"newDigest,omitempty"`
	Version        string `json:"version,omitempty"`
	Alias          string `json:"alias,omitempty"`
	Pipeline       string `json:"pipeline,omitempty"`
	ExecutionID    string `json:"executionId,omitempty"`
}

func ErrorResult(target string, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{Target: target, Status: StatusError, Error: msg}
}

// InvocationStatus is the overall outcome of one triggering event.
type InvocationStatus string

const (
	InvocationDone      InvocationStatus = "done"
	InvocationIgnored   InvocationStatus = "ignored"
	InvocationNoTargets InvocationStatus = "no_targets"
	InvocationError     InvocationStatus = "error"
)

type Invocation struct {
	Status  InvocationStatus `json:"status"`
	Reason  string           `json:"reason,omitempty"`
	Results []Result         `json:"results,omitempty"`
}
