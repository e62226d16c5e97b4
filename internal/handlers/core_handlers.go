package handlers

import (
	"net/http"
)

// HandleHealth reports liveness plus a metrics snapshot.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"metrics": s.Metrics.GetSummary(),
		})
	}
}
