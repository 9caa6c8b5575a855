// metrics.go — Prometheus-метрики запуска провижининга.
// Регистрирует метрики sfprov_*; по завершении запуска они отправляются
// в Pushgateway (PV_PUSHGATEWAY_URL), так как процесс живёт недолго.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/bigkaa/sf-provisioner/internal/salesforce"
)

// pushJobName — имя job в Pushgateway.
const pushJobName = "sf_provisioner"

var (
	// recordsTotal — результаты создания по статусам.
	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfprov_records_total",
			Help: "Количество обработанных записей по статусу создания",
		},
		[]string{"status"},
	)

	// preflightDecisionsTotal — решения preflight по действиям.
	preflightDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfprov_preflight_decisions_total",
			Help: "Количество решений preflight по действию",
		},
		[]string{"action"},
	)

	// preflightDegradedTotal — запуски preflight без ответа каталога.
	preflightDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfprov_preflight_degraded_total",
		Help: "Количество запусков preflight в деградированном режиме",
	})

	// assignmentsTotal — назначения PSG и очередей.
	assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfprov_assignments_total",
			Help: "Количество назначений по типу и результату",
		},
		[]string{"kind", "result"},
	)

	// directoryRequestsTotal — обращения к каталогу.
	directoryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfprov_directory_requests_total",
			Help: "Количество запросов к Salesforce по операции и результату",
		},
		[]string{"operation", "result"},
	)

	// directoryRequestDuration — длительность обращений к каталогу.
	directoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfprov_directory_request_duration_seconds",
			Help:    "Длительность запросов к Salesforce в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// runDuration — длительность запуска целиком.
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sfprov_run_duration_seconds",
		Help:    "Длительность запуска провижининга",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s … ~256s
	})
)

// Значения лейбла kind для assignmentsTotal.
const (
	assignmentKindPSG   = "permission_set_group"
	assignmentKindQueue = "queue"
)

// resultLabel возвращает значение лейбла result.
func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// instrumentedDirectory — обёртка Directory со сбором метрик.
type instrumentedDirectory struct {
	next Directory
}

// InstrumentDirectory оборачивает каталог сбором метрик
// sfprov_directory_requests_total и sfprov_directory_request_duration_seconds.
func InstrumentDirectory(dir Directory) Directory {
	return &instrumentedDirectory{next: dir}
}

func (d *instrumentedDirectory) observe(operation string, start time.Time, err error) {
	directoryRequestsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	directoryRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (d *instrumentedDirectory) Query(ctx context.Context, soql string) (*salesforce.QueryResult, error) {
	start := time.Now()
	r, err := d.next.Query(ctx, soql)
	d.observe("query", start, err)
	return r, err
}

func (d *instrumentedDirectory) QueryAll(ctx context.Context, soql string) (*salesforce.QueryResult, error) {
	start := time.Now()
	r, err := d.next.QueryAll(ctx, soql)
	d.observe("query_all", start, err)
	return r, err
}

func (d *instrumentedDirectory) Create(ctx context.Context, sobject string, payload any) (*salesforce.SaveResult, error) {
	start := time.Now()
	r, err := d.next.Create(ctx, sobject, payload)
	observed := err
	if observed == nil && r != nil && !r.Success {
		observed = errors.New("success=false")
	}
	d.observe("create_"+strings.ToLower(sobject), start, observed)
	return r, err
}

// PushMetrics отправляет метрики процесса в Pushgateway.
// Группировка по окружению: каждый запуск перезаписывает метрики своего окружения.
func PushMetrics(ctx context.Context, gatewayURL, environment string) error {
	err := push.New(gatewayURL, pushJobName).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("environment", environment).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("отправка метрик в Pushgateway: %w", err)
	}
	return nil
}
