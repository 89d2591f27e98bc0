package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"budgee-monitor/src/monitor"
	"budgee-monitor/src/scheduler"
)

// ScanTrigger runs a manual pass. *scheduler.Scheduler satisfies it.
type ScanTrigger interface {
	Trigger(ctx context.Context, opts monitor.ScanOptions) (*monitor.Report, error)
	Stats() scheduler.Stats
}

// TriggerScan runs a pass now, for every user or for ?user_id=, and returns
// the per-user report.
func TriggerScan(s ScanTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts monitor.ScanOptions
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "invalid user id", http.StatusBadRequest)
				return
			}
			opts.UserID = id
		}

		report, err := s.Trigger(r.Context(), opts)
		if err != nil {
			log.Printf("ERROR: Manual scan failed: %v", err)
			http.Error(w, "scan failed", http.StatusServiceUnavailable)
			return
		}
		log.Printf("INFO: Manual scan %s finished: %d users, %d notified", report.PassID, len(report.Users), report.Notified())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func GetScanStatus(s ScanTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Stats())
	}
}
