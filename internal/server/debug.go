package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"image-drop/internal/logging"
)

// debugSnapshot is the /api/debug document.
type debugSnapshot struct {
	ImageList   []string        `json:"imageList"`
	Cursor      int             `json:"cursor"`
	Fetched     bool            `json:"fetched"`
	Uptime      float64         `json:"uptime"` // seconds
	MemoryUsage memoryUsage     `json:"memoryUsage"`
	RecentLogs  []logging.Entry `json:"recentLogs"`
}

type memoryUsage struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

func readMemoryUsage() memoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return memoryUsage{
		Alloc:      ms.Alloc,
		TotalAlloc: ms.TotalAlloc,
		Sys:        ms.Sys,
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

func (s *Server) debugSnapshot() debugSnapshot {
	snap := s.cfg.Registry.Snapshot()
	logs := []logging.Entry{}
	if s.cfg.Ring != nil {
		logs = s.cfg.Ring.Entries()
	}
	return debugSnapshot{
		ImageList:   snap.Images,
		Cursor:      snap.Cursor,
		Fetched:     snap.Fetched,
		Uptime:      time.Since(s.started).Seconds(),
		MemoryUsage: readMemoryUsage(),
		RecentLogs:  logs,
	}
}

// handleDebug writes the snapshot as indented JSON.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	body, err := json.MarshalIndent(s.debugSnapshot(), "", "  ")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Error building debug snapshot.")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
