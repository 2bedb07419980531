package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// ReadinessReporter tells when the catalog has served a first refresh.
type ReadinessReporter interface {
	Readiness() (ready bool, lastUpdated time.Time)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status      string     `json:"status"`
			LastUpdated *time.Time `json:"lastUpdated,omitempty"`
		}
		ready, last := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.LastUpdated = &last
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
