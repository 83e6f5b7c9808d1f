package jobs

import (
	"context"
	"errors"
)

// The handlers below carry the real validation contract for each job type.
// Their Execute bodies stand in for the external compute collaborators
// (model loading, training, rendering) that live outside this agent.

// --- LLM inference ---

type llmInferenceHandler struct {
	model       string
	prompt      string
	maxTokens   int
	temperature float64
	cleanedUp   bool
}

func newLLMInferenceHandler(job *Description) Handler {
	return &llmInferenceHandler{
		model:       stringField(job.Input, "model", "Qwen/Qwen-7B"),
		prompt:      stringField(job.Input, "prompt", ""),
		maxTokens:   intField(job.Config, "max_tokens", 512),
		temperature: floatField(job.Config, "temperature", 0.7),
	}
}

func (h *llmInferenceHandler) Validate() error {
	if h.prompt == "" {
		return errors.New("prompt is required")
	}
	return nil
}

func (h *llmInferenceHandler) Execute(ctx context.Context) Result {
	return Result{
		Success: true,
		Output: map[string]interface{}{
			"output":           "This is a placeholder result for LLM inference",
			"model":            h.model,
			"tokens_generated": h.maxTokens,
		},
	}
}

func (h *llmInferenceHandler) Cleanup() {
	h.cleanedUp = true
}

// --- LLM fine-tuning ---

type fineTuningHandler struct {
	model        string
	datasetURL   string
	epochs       int
	learningRate float64
	loraR        int
	loraAlpha    int
	cleanedUp    bool
}

func newFineTuningHandler(job *Description) Handler {
	return &fineTuningHandler{
		model:        stringField(job.Input, "model", "Qwen/Qwen-7B"),
		datasetURL:   stringField(job.Input, "dataset_url", ""),
		epochs:       intField(job.Config, "epochs", 3),
		learningRate: floatField(job.Config, "learning_rate", 2e-4),
		loraR:        intField(job.Config, "lora_r", 8),
		loraAlpha:    intField(job.Config, "lora_alpha", 16),
	}
}

func (h *fineTuningHandler) Validate() error {
	if h.datasetURL == "" {
		return errors.New("dataset_url is required")
	}
	return nil
}

func (h *fineTuningHandler) Execute(ctx context.Context) Result {
	return Result{
		Success: true,
		Output: map[string]interface{}{
			"message":        "Fine-tuning completed",
			"model":          h.model,
			"epochs":         h.epochs,
			"checkpoint_url": "ipfs://placeholder-checkpoint",
		},
	}
}

func (h *fineTuningHandler) Cleanup() {
	h.cleanedUp = true
}

// --- RAG indexing ---

type ragIndexingHandler struct {
	documents      []interface{}
	chunkSize      int
	embeddingModel string
	cleanedUp      bool
}

func newRAGIndexingHandler(job *Description) Handler {
	return &ragIndexingHandler{
		documents:      listField(job.Input, "documents"),
		chunkSize:      intField(job.Config, "chunk_size", 512),
		embeddingModel: stringField(job.Config, "embedding_model", "BAAI/bge-small-en-v1.5"),
	}
}

func (h *ragIndexingHandler) Validate() error {
	if len(h.documents) == 0 {
		return errors.New("documents are required")
	}
	return nil
}

func (h *ragIndexingHandler) Execute(ctx context.Context) Result {
	return Result{
		Success: true,
		Output: map[string]interface{}{
			"message":             "RAG indexing completed",
			"index_url":           "ipfs://placeholder-index",
			"documents_processed": len(h.documents),
		},
	}
}

func (h *ragIndexingHandler) Cleanup() {
	h.cleanedUp = true
}

// --- Vision pipeline ---

type visionPipelineHandler struct {
	task      string
	imageURLs []interface{}
	model     string
	cleanedUp bool
}

func newVisionPipelineHandler(job *Description) Handler {
	return &visionPipelineHandler{
		task:      stringField(job.Input, "task", "detection"),
		imageURLs: listField(job.Input, "image_urls"),
		model:     stringField(job.Config, "model", "yolov8"),
	}
}

func (h *visionPipelineHandler) Validate() error {
	if len(h.imageURLs) == 0 {
		return errors.New("image_urls are required")
	}
	return nil
}

func (h *visionPipelineHandler) Execute(ctx context.Context) Result {
	return Result{
		Success: true,
		Output: map[string]interface{}{
			"message": "Vision pipeline completed",
			"task":    h.task,
			"results": []interface{}{},
		},
	}
}

func (h *visionPipelineHandler) Cleanup() {
	h.cleanedUp = true
}

// --- Render ---

type renderHandler struct {
	renderType   string
	sceneURL     string
	outputFormat string
	cleanedUp    bool
}

func newRenderHandler(job *Description) Handler {
	return &renderHandler{
		renderType:   stringField(job.Input, "type", "blender"),
		sceneURL:     stringField(job.Input, "scene_url", ""),
		outputFormat: stringField(job.Config, "output_format", "png"),
	}
}

func (h *renderHandler) Validate() error {
	if h.sceneURL == "" {
		return errors.New("scene_url is required")
	}
	return nil
}

func (h *renderHandler) Execute(ctx context.Context) Result {
	return Result{
		Success: true,
		Output: map[string]interface{}{
			"message":    "Render completed",
			"type":       h.renderType,
			"output_url": "ipfs://placeholder-render." + h.outputFormat,
		},
	}
}

func (h *renderHandler) Cleanup() {
	h.cleanedUp = true
}

// --- Generic fallback ---

// genericHandler accepts any job so unknown types never block the loop.
type genericHandler struct {
	cleanedUp bool
}

func newGenericHandler(job *Description) Handler {
	return &genericHandler{}
}

func (h *genericHandler) Validate() error {
	return nil
}

func (h *genericHandler) Execute(ctx context.Context) Result {
	return Result{
		Success: true,
		Output: map[string]interface{}{
			"result":    "Generic job completed",
			"exit_code": 0,
		},
	}
}

func (h *genericHandler) Cleanup() {
	h.cleanedUp = true
}
