package app

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// statsPayload is the JSON document served by the stats endpoint.
type statsPayload struct {
	FramesRun      int64          `json:"frames_run"`
	Nodes          int            `json:"nodes"`
	NodeStates     map[string]int `json:"node_states"`
	QueueLen       int            `json:"queue_len"`
	QueueTotalNs   uint64         `json:"queue_total_ns"`
	BudgetNs       uint64         `json:"budget_ns"`
	PipelineHits   uint64         `json:"pipeline_hits"`
	PipelineMisses uint64         `json:"pipeline_misses"`
	DeviceLive     int            `json:"device_live"`
	DeviceAlloc    int            `json:"device_allocated"`
	DeviceReleased int            `json:"device_released"`
	DestroyPending int            `json:"destroy_pending"`
}

// statsHandler serves a point-in-time snapshot of the scheduler's counters.
// The snapshot is advisory; it races the frame loop by design and is meant
// for humans watching a running instance, not for control decisions.
func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Stats endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)

	states := make(map[string]int)
	for _, h := range a.graph.Handles() {
		if inst := a.graph.Node(h); inst != nil {
			states[inst.State().String()]++
		}
	}
	hits, misses := a.cc.Pipelines.Stats()

	payload := statsPayload{
		FramesRun:      a.framesRun.Load(),
		Nodes:          a.graph.Len(),
		NodeStates:     states,
		QueueLen:       a.cc.Queue.Len(),
		QueueTotalNs:   a.cc.Queue.RunningTotal(),
		BudgetNs:       a.cc.Queue.Budget().GPUTimeBudgetNs,
		PipelineHits:   hits,
		PipelineMisses: misses,
		DeviceLive:     a.dev.LiveCount(),
		DeviceAlloc:    a.dev.Allocated(),
		DeviceReleased: a.dev.Released(),
		DestroyPending: a.cc.Destroy.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("Stats encoding failed", "error", err)
	}
}

// startStatsServer initializes and runs the stats HTTP server.
func (a *App) startStatsServer(port int) {
	a.logger.Debug("Configuring stats server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", a.statsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	addr := fmt.Sprintf(":%d", port)

	go func() {
		a.logger.Info("Stats server starting", "address", fmt.Sprintf("http://localhost%s/stats", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.logger.Error("Stats server failed", "error", err)
		}
	}()
}
