package jobs

import "context"

// Type identifies the class of work a job requests. Unrecognized values
// route to the generic handler rather than failing.
type Type string

const (
	TypeLLMInference  Type = "llm_inference"
	TypeLLMFineTuning Type = "llm_fine_tuning"
	TypeRAGIndexing   Type = "rag_indexing"
	TypeVisionPipe    Type = "vision_pipeline"
	TypeRender        Type = "render"
	TypeGeneric       Type = "generic"
)

// Description is one unit of work fetched from the backend. It is consumed
// exactly once by the dispatcher and never retried by the agent.
type Description struct {
	ID     string                 `json:"jobId"`
	Type   string                 `json:"jobType"`
	Input  map[string]interface{} `json:"input"`
	Config map[string]interface{} `json:"config"`
	// Reward is an optional decimal amount credited on success.
	Reward string `json:"reward,omitempty"`
}

// Result is the outcome of a handler's Execute. It travels as a value
// through the dispatch pipeline; failures are never raised as panics.
type Result struct {
	Success bool
	Output  map[string]interface{}
	Err     string
}

// Failure builds a failed Result with the given reason.
func Failure(reason string) Result {
	return Result{Success: false, Err: reason}
}

// Handler is the contract the agent requires from job execution logic.
// The computational bodies behind Execute live outside this module.
type Handler interface {
	// Validate checks the job's required inputs. A non-nil error
	// short-circuits dispatch; Execute is never invoked.
	Validate() error
	// Execute runs the job and returns its outcome as a value.
	Execute(ctx context.Context) Result
	// Cleanup frees any exclusive resources. It is idempotent and runs
	// exactly once per dispatched job, regardless of outcome, and always
	// before the outcome is reported to the backend.
	Cleanup()
}

// State is a stage of the per-job dispatch state machine.
type State string

const (
	StateReceived   State = "received"
	StateValidating State = "validating"
	StateExecuting  State = "executing"
	StateReporting  State = "reporting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func stringField(m map[string]interface{}, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intField(m map[string]interface{}, key string, fallback int) int {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64: // JSON numbers decode as float64
		return int(v)
	}
	return fallback
}

func floatField(m map[string]interface{}, key string, fallback float64) float64 {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func listField(m map[string]interface{}, key string) []interface{} {
	if m == nil {
		return nil
	}
	if v, ok := m[key].([]interface{}); ok {
		return v
	}
	return nil
}
