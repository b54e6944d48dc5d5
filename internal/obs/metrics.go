package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BytesForwardedTotal    = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpthrottle_bytes_forwarded_total", Help: "Bytes forwarded by direction"}, []string{"direction"})
	WindowBytes            = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "tcpthrottle_window_bytes", Help: "Bytes moved in the last closed window by direction"}, []string{"direction"})
	ThrottledWindowsTotal  = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpthrottle_throttled_windows_total", Help: "Windows in which a direction used its whole budget"}, []string{"direction"})
	QueuedBytes            = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "tcpthrottle_queued_bytes", Help: "Unread bytes in the kernel receive queue by side"}, []string{"side"})
	ErrorsTotal            = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcpthrottle_errors_total", Help: "Errors by kind"}, []string{"kind"})
	ActiveSessions         = promauto.NewGauge(prometheus.GaugeOpts{Name: "tcpthrottle_active_sessions", Help: "Sessions currently relaying (0 or 1)"})
	SessionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tcpthrottle_session_duration_seconds", Help: "Session lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
)
