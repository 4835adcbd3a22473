package domain

// Pipeline execution statuses as stored on bindings. External vocabulary
// from the pipeline collaborator is mapped through MapPipelineStatus;
// unknown strings pass through verbatim so no observation is lost.
const (
	PipelineStatusPending    = "Pending"
	PipelineStatusRunning    = "Running"
	PipelineStatusStarted    = "Started"
	PipelineStatusStopping   = "Stopping"
	PipelineStatusStopped    = "Stopped"
	PipelineStatusSucceeded  = "Succeeded"
	PipelineStatusSuperseded = "Superseded"
	PipelineStatusFailed     = "Failed"
	PipelineStatusNotFound   = "NotFound"
)

func MapPipelineStatus(external string) string {
	switch external {
	case "InProgress":
		return PipelineStatusRunning
	case "Stopping":
		return PipelineStatusStopping
	case "Stopped":
		return PipelineStatusStopped
	case "Succeeded":
		return PipelineStatusSucceeded
	case "Superseded":
		return PipelineStatusSuperseded
	case "Failed":
		return PipelineStatusFailed
	}
	return external
}

// IsTerminalPipelineStatus reports whether the monitor has nothing left
// to do for a binding at this status.
func IsTerminalPipelineStatus(status string) bool {
	switch status {
	case PipelineStatusSucceeded, PipelineStatusFailed, PipelineStatusStopped, PipelineStatusNotFound:
		return true
	}
	return false
}

// PendingPipelineStatuses are the stored statuses the monitor still polls.
// An absent status (empty string) counts as pending.
var PendingPipelineStatuses = []string{
	PipelineStatusPending,
	PipelineStatusRunning,
	PipelineStatusStarted,
}
