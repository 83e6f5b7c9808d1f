// mockbackend is a standalone in-memory coordination backend for local
// agent development. It implements the endpoints the agent calls and a
// couple of extras for seeding work and inspecting state. Nothing here is
// persisted; restart it and the world is fresh.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type node struct {
	NodeID        string    `json:"nodeId"`
	WalletAddress string    `json:"walletAddress"`
	GPUModel      string    `json:"gpuModel"`
	VRAM          uint64    `json:"vram"`
	Capabilities  []string  `json:"capabilities"`
	RegisteredAt  time.Time `json:"registeredAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

type job struct {
	ID     string                 `json:"jobId"`
	Type   string                 `json:"jobType"`
	Input  map[string]interface{} `json:"input"`
	Config map[string]interface{} `json:"config"`
	Reward string                 `json:"reward,omitempty"`
}

type outcome struct {
	JobID      string                 `json:"jobId"`
	Success    bool                   `json:"success"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ReportedAt time.Time              `json:"reportedAt"`
}

type state struct {
	mu       sync.Mutex
	nodes    map[string]*node // keyed by wallet address
	queue    []*job
	outcomes []outcome
}

func newState() *state {
	return &state{nodes: make(map[string]*node)}
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	seed := flag.Bool("seed", false, "enqueue one sample job of each type at startup")
	flag.Parse()

	st := newState()
	if *seed {
		st.seedJobs()
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/nodes/register", st.handleRegister)
	r.Post("/api/nodes/heartbeat", st.handleHeartbeat)
	r.Get("/api/jobs/available", st.handleAvailable)
	r.Post("/api/jobs/{jobID}/result", st.handleResult)
	r.Post("/api/jobs/{jobID}/failure", st.handleFailure)

	// Dev conveniences, not part of the agent's surface.
	r.Post("/api/jobs", st.handleEnqueue)
	r.Get("/api/nodes", st.handleListNodes)
	r.Get("/api/outcomes", st.handleListOutcomes)

	fmt.Printf("mock backend listening on %s\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, r))
}

func (s *state) seedJobs() {
	s.queue = append(s.queue,
		&job{
			ID:     uuid.NewString(),
			Type:   "llm_inference",
			Input:  map[string]interface{}{"prompt": "Say hello"},
			Reward: "0.25",
		},
		&job{
			ID:     uuid.NewString(),
			Type:   "render",
			Input:  map[string]interface{}{"scene_url": "ipfs://sample-scene"},
			Reward: "1.0",
		},
		&job{
			ID:   uuid.NewString(),
			Type: "generic",
		},
	)
	log.Printf("seeded %d jobs", len(s.queue))
}

func (s *state) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string   `json:"walletAddress"`
		GPUModel      string   `json:"gpuModel"`
		VRAM          uint64   `json:"vram"`
		Capabilities  []string `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.WalletAddress == "" {
		httpError(w, http.StatusBadRequest, "walletAddress is required")
		return
	}

	s.mu.Lock()
	n, ok := s.nodes[req.WalletAddress]
	if !ok {
		n = &node{NodeID: "node-" + uuid.NewString(), RegisteredAt: time.Now()}
		s.nodes[req.WalletAddress] = n
	}
	n.WalletAddress = req.WalletAddress
	n.GPUModel = req.GPUModel
	n.VRAM = req.VRAM
	n.Capabilities = req.Capabilities
	n.LastHeartbeat = time.Now()
	s.mu.Unlock()

	log.Printf("registered node %s (%s, %d GB)", n.NodeID, req.GPUModel, req.VRAM)
	writeJSON(w, http.StatusOK, map[string]interface{}{"node": n})
}

func (s *state) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	n, ok := s.nodes[req.WalletAddress]
	if ok {
		n.LastHeartbeat = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		httpError(w, http.StatusNotFound, "node not registered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *state) handleAvailable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var next *job
	if len(s.queue) > 0 {
		next = s.queue[0]
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"job": next})
}

func (s *state) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req struct {
		NodeID string                 `json:"nodeId"`
		Result map[string]interface{} `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	s.outcomes = append(s.outcomes, outcome{
		JobID:      jobID,
		Success:    true,
		Result:     req.Result,
		ReportedAt: time.Now(),
	})
	s.mu.Unlock()

	log.Printf("job %s completed by %s", jobID, req.NodeID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *state) handleFailure(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	s.outcomes = append(s.outcomes, outcome{
		JobID:      jobID,
		Success:    false,
		Error:      req.Error,
		ReportedAt: time.Now(),
	})
	s.mu.Unlock()

	log.Printf("job %s failed: %s", jobID, req.Error)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *state) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var j job
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Type == "" {
		j.Type = "generic"
	}

	s.mu.Lock()
	s.queue = append(s.queue, &j)
	depth := len(s.queue)
	s.mu.Unlock()

	log.Printf("enqueued job %s (%s), queue depth %d", j.ID, j.Type, depth)
	writeJSON(w, http.StatusCreated, &j)
}

func (s *state) handleListNodes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	nodes := make([]*node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes})
}

func (s *state) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	outcomes := append([]outcome(nil), s.outcomes...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
