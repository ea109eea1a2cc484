package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счетчики Prometheus для сессии камеры
type Metrics struct {
	registry       *prometheus.Registry
	streamsOpened  prometheus.Counter
	streamFailures prometheus.Counter
	activeStreams  prometheus.Gauge
	captures       prometheus.Counter
	capturesSkip   prometheus.Counter
	wakeLockHeld   prometheus.Gauge
	wsClients      prometheus.Gauge
}

// New создает и регистрирует метрики
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streamsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdcam_streams_opened_total",
			Help: "Total number of camera streams opened",
		}),
		streamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdcam_stream_failures_total",
			Help: "Total number of failed camera stream requests",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hdcam_active_streams",
			Help: "Number of open camera streams (at most one)",
		}),
		captures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdcam_captures_total",
			Help: "Total number of frames captured and saved",
		}),
		capturesSkip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdcam_captures_skipped_total",
			Help: "Capture requests ignored because no frame was ready",
		}),
		wakeLockHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hdcam_wake_lock_held",
			Help: "1 if the screen wake lock is held",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hdcam_websocket_clients",
			Help: "Number of connected browser pages",
		}),
	}

	m.registry.MustRegister(
		m.streamsOpened,
		m.streamFailures,
		m.activeStreams,
		m.captures,
		m.capturesSkip,
		m.wakeLockHeld,
		m.wsClients,
	)
	return m
}

// StreamOpened поток открыт
func (m *Metrics) StreamOpened() {
	m.streamsOpened.Inc()
	m.activeStreams.Inc()
}

// StreamFailed запрос потока не удался
func (m *Metrics) StreamFailed() {
	m.streamFailures.Inc()
}

// StreamClosed поток остановлен
func (m *Metrics) StreamClosed() {
	m.activeStreams.Dec()
}

// FrameCaptured снимок сохранен
func (m *Metrics) FrameCaptured() {
	m.captures.Inc()
}

// CaptureSkipped съемка пропущена
func (m *Metrics) CaptureSkipped() {
	m.capturesSkip.Inc()
}

// WakeLockHeld состояние блокировки экрана
func (m *Metrics) WakeLockHeld(held bool) {
	if held {
		m.wakeLockHeld.Set(1)
	} else {
		m.wakeLockHeld.Set(0)
	}
}

// SetClients число подключенных страниц
func (m *Metrics) SetClients(n int) {
	m.wsClients.Set(float64(n))
}

// Handler возвращает http.Handler с метриками
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
