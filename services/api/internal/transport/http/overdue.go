package http

import (
	"context"
	"net/http"

	"github.com/cimillas/bookloan/services/api/internal/app"
)

type OverdueSweeper interface {
	Sweep(ctx context.Context) (app.SweepReport, error)
}

type sweepResponse struct {
	Day      string `json:"day"`
	Overdue  int    `json:"overdue"`
	Notified int    `json:"notified"`
	Failed   int    `json:"failed"`
}

// HandleOverdueScan serves POST /admin/overdue-scan for external schedulers.
func HandleOverdueScan(svc OverdueSweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		report, err := svc.Sweep(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{
			Day:      report.Day.Format(dateLayout),
			Overdue:  report.Overdue,
			Notified: report.Notified,
			Failed:   report.Failed,
		})
	}
}
