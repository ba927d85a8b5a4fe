// Package monitor exposes run progress over a small HTTP surface.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"rewardsbot/botlog"
)

// Stats is a thread-safe counter sink fed by the orchestrator and read by
// the HTTP handlers.
type Stats struct {
	mu         sync.Mutex
	attempted  int
	completed  int
	failed     int
	multiplier float64
	startedAt  time.Time
}

func NewStats() *Stats {
	return &Stats{multiplier: 1.0, startedAt: time.Now()}
}

func (s *Stats) Attempted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted++
}

func (s *Stats) Completed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
}

func (s *Stats) Failed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

func (s *Stats) Multiplier(m float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multiplier = m
}

type snapshot struct {
	Attempted  int       `json:"attempted"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Multiplier float64   `json:"throttle_multiplier"`
	StartedAt  time.Time `json:"started_at"`
	UptimeSec  int       `json:"uptime_sec"`
}

func (s *Stats) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		Attempted:  s.attempted,
		Completed:  s.completed,
		Failed:     s.failed,
		Multiplier: s.multiplier,
		StartedAt:  s.startedAt,
		UptimeSec:  int(time.Since(s.startedAt).Seconds()),
	}
}

// Serve starts the status server in the background. An empty addr disables
// it.
func Serve(addr string, stats *Stats, log botlog.Logger) {
	if addr == "" {
		return
	}
	if log == nil {
		log = botlog.Nop{}
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.snapshot())
	}).Methods(http.MethodGet)

	go func() {
		log.Printf("📊 status server on %s", addr)
		if err := http.ListenAndServe(addr, router); err != nil {
			log.Errorf("status server: %v", err)
		}
	}()
}
