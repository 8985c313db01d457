package http

import (
	"net/http"

	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func healthHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Status   string            `json:"status"`
		Backends map[string]string `json:"backends"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		report := uc.Health(ctx)

		status := http.StatusOK
		label := "ok"
		if !report.Healthy {
			status = http.StatusServiceUnavailable
			label = "degraded"
		}

		respondJSON(ctx, w, status, response{
			Status:   label,
			Backends: report.Components,
		})
	}
}
