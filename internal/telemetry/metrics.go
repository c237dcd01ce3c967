package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики сервиса. Экспортируются на /metrics
// стандартным promhttp-хендлером в каждом бинарнике.
var (
	vkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parsevk",
		Name:      "vk_requests_total",
		Help:      "Запросы к VK API по методам и результату.",
	}, []string{"method", "result"})

	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parsevk",
		Name:      "tasks_total",
		Help:      "Задачи парсинга по терминальному статусу.",
	}, []string{"status"})

	tasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parsevk",
		Name:      "tasks_running",
		Help:      "Задачи, выполняющиеся в данный момент на этом воркере.",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "parsevk",
		Name:      "breaker_state",
		Help:      "Состояние circuit breaker: 0 CLOSED, 1 OPEN, 2 HALF_OPEN.",
	}, []string{"name"})

	itemsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parsevk",
		Name:      "items_saved_total",
		Help:      "Сохранённые сущности по типу (post, comment, author).",
	}, []string{"kind"})
)

// ObserveVKRequest учитывает исход запроса к VK API.
//
// result — "ok", "api_error" или "transport_error"; классификацию
// делает vk-клиент, чтобы telemetry не зависел от его типов ошибок.
func ObserveVKRequest(method, result string) {
	vkRequestsTotal.WithLabelValues(method, result).Inc()
}

// ObserveTaskFinished учитывает задачу, достигшую терминального статуса.
func ObserveTaskFinished(status string) {
	tasksTotal.WithLabelValues(status).Inc()
}

// TaskStarted увеличивает счётчик выполняющихся задач.
func TaskStarted() { tasksRunning.Inc() }

// TaskStopped уменьшает счётчик выполняющихся задач.
func TaskStopped() { tasksRunning.Dec() }

// SetBreakerState публикует текущее состояние circuit breaker.
func SetBreakerState(name, state string) {
	var v float64
	switch state {
	case "OPEN":
		v = 1
	case "HALF_OPEN":
		v = 2
	}
	breakerState.WithLabelValues(name).Set(v)
}

// ObserveItemsSaved учитывает сохранённые сущности.
func ObserveItemsSaved(kind string, n int) {
	if n > 0 {
		itemsSavedTotal.WithLabelValues(kind).Add(float64(n))
	}
}
