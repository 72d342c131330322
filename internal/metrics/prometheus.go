package metrics

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const prometheusMetricName = "aero_webrtc_chat_relay_events_total"

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler exposes every counter as one Prometheus counter family
// with an `event` label.
func PrometheusHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		events := lo.Keys(snap)
		slices.Sort(events)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintf(w, "# HELP %s Chat relay event counters.\n", prometheusMetricName)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", prometheusMetricName)
		for _, event := range events {
			_, _ = fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", prometheusMetricName, labelEscaper.Replace(event), snap[event])
		}
	})
}
