package handlers

import (
	"net/http"

	"github.com/upb/ai-orchestrator/services/content"
	"github.com/upb/ai-orchestrator/utils"
)

// Version is reported by the status endpoint
const Version = "0.1.0"

// StatusInfo describes how this instance is wired
type StatusInfo struct {
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Providers   []string `json:"providers"`
	Store       string   `json:"store"`
	Ledger      string   `json:"ledger"`
	Cache       string   `json:"content_cache"`

	// CacheStats, when set, is read on every request
	CacheStats content.StatsReporter `json:"-"`
}

type statusResponse struct {
	StatusInfo
	Stats *content.CacheStats `json:"content_cache_stats,omitempty"`
}

// StatusHandler returns application status information
func StatusHandler(info StatusInfo) http.HandlerFunc {
	if info.Version == "" {
		info.Version = Version
	}
	if info.Providers == nil {
		info.Providers = []string{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{StatusInfo: info}
		if info.CacheStats != nil {
			stats := info.CacheStats.Stats()
			resp.Stats = &stats
		}
		_ = utils.WriteOK(w, resp)
	}
}
