package jobs

// Factory builds a Handler bound to one job description.
type Factory func(job *Description) Handler

// Registry maps job types to handler factories. Dispatch is an explicit
// table lookup; types without an entry fall back to the generic factory.
type Registry struct {
	factories map[Type]Factory
	fallback  Factory
}

// NewRegistry returns a registry wired with the built-in handlers.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[Type]Factory{
			TypeLLMInference:  newLLMInferenceHandler,
			TypeLLMFineTuning: newFineTuningHandler,
			TypeRAGIndexing:   newRAGIndexingHandler,
			TypeVisionPipe:    newVisionPipelineHandler,
			TypeRender:        newRenderHandler,
		},
		fallback: newGenericHandler,
	}
}

// Register adds or replaces the factory for a job type.
func (r *Registry) Register(t Type, f Factory) {
	r.factories[t] = f
}

// Handler builds the handler for a job, falling back to the generic one
// when the type is unrecognized.
func (r *Registry) Handler(job *Description) (Handler, bool) {
	if f, ok := r.factories[Type(job.Type)]; ok {
		return f(job), true
	}
	return r.fallback(job), false
}
