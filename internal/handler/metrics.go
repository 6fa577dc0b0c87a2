package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/smstodo/smstodo/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	statuses := make([]string, 0, len(snap.Messages))
	for status := range snap.Messages {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		writeMetric(w, "smstodo_inbound_messages_total{status=%q} %d\n", status, snap.Messages[status])
	}

	keys := make([]metrics.CommandKey, 0, len(snap.Commands))
	for k := range snap.Commands {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Command != keys[j].Command {
			return keys[i].Command < keys[j].Command
		}
		return keys[i].Outcome < keys[j].Outcome
	})
	for _, k := range keys {
		writeMetric(w, "smstodo_commands_total{command=%q,outcome=%q} %d\n", k.Command, k.Outcome, snap.Commands[k])
	}

	writeMetric(w, "smstodo_command_duration_seconds_count %d\n", snap.CommandDurationCount)
	writeMetric(w, "smstodo_command_duration_seconds_sum %.6f\n", float64(snap.CommandDurationTotalNs)/1e9)
	writeMetric(w, "smstodo_tx_retries_total %d\n", snap.TxRetries)

	writeMetric(w, "smstodo_sms_total{status=\"sent\"} %d\n", snap.SMSSent)
	writeMetric(w, "smstodo_sms_total{status=\"failed\"} %d\n", snap.SMSFailed)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
