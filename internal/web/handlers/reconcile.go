package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/osm-versailles/internal/metrics"
	"github.com/osm-versailles/internal/normalize"
	"github.com/osm-versailles/internal/reconcile"
)

// ReconcileHandler exposes the postcode/city reconciler.
type ReconcileHandler struct {
	Reconciler *reconcile.Reconciler
	Metrics    *metrics.Metrics
}

// ReconcileResponse shows a raw pair next to its correction.
type ReconcileResponse struct {
	Raw       reconcile.Pair `json:"raw"`
	Corrected reconcile.Pair `json:"corrected"`
	Changed   bool           `json:"changed"`
}

// Reconcile corrects the postcode and city query parameters.
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	raw := reconcile.Pair{
		Postcode: normalize.Text(strings.TrimSpace(r.URL.Query().Get("postcode"))),
		City:     normalize.Text(strings.TrimSpace(r.URL.Query().Get("city"))),
	}
	if raw.IsEmpty() {
		writeError(w, r, http.StatusBadRequest, "postcode or city is required")
		return
	}

	corrected, err := h.Reconciler.ReconcilePair(raw)
	if errors.Is(err, reconcile.ErrUnresolvableCity) {
		h.Metrics.IncrementReconciliation(metrics.OutcomeUnresolvable)
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	resp := ReconcileResponse{Raw: raw, Corrected: corrected, Changed: corrected != raw}
	if resp.Changed {
		h.Metrics.IncrementReconciliation(metrics.OutcomeChanged)
	} else {
		h.Metrics.IncrementReconciliation(metrics.OutcomeUnchanged)
	}
	writeJSON(w, r, http.StatusOK, resp)
}
