package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// RegisterRuntimeGauges adds process, connection pool and state gauges to registry.
func RegisterRuntimeGauges(registry *prometheus.Registry, db *gorm.DB, hub *services.SSEHub, queue services.TaskQueue) {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if sqlDB, err := db.DB(); err == nil {
		registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, "fundgate"))
	}

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fundgate_sse_active_clients",
		Help: "Number of active SSE connections",
	}, func() float64 {
		if hub == nil {
			return 0
		}
		return float64(hub.ClientCount())
	}))

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fundgate_queue_async_enabled",
		Help: "Whether async queue (Redis) is enabled (1=yes, 0=no)",
	}, func() float64 {
		if queue != nil && queue.IsAsync() {
			return 1
		}
		return 0
	}))

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fundgate_settlements_pending",
		Help: "Settlement ledger entries awaiting confirmation",
	}, func() float64 {
		var n int64
		db.Model(&models.Transaction{}).Where("status = ?", models.TxStatusPending).Count(&n)
		return float64(n)
	}))

	projects := prometheus.NewDesc("fundgate_projects", "Projects by status", []string{"status"}, nil)
	registry.MustRegister(&statusCollector{db: db, desc: projects})
}

// Metrics serves the registry in the Prometheus text format.
func Metrics(registry *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return gin.WrapH(h)
}

// statusCollector counts projects per status at scrape time
type statusCollector struct {
	db   *gorm.DB
	desc *prometheus.Desc
}

func (s *statusCollector) Describe(ch chan<- *prometheus.Desc) { ch <- s.desc }

func (s *statusCollector) Collect(ch chan<- prometheus.Metric) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.Model(&models.Project{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return
	}
	for _, r := range rows {
		ch <- prometheus.MustNewConstMetric(s.desc, prometheus.GaugeValue, float64(r.Count), r.Status)
	}
}
