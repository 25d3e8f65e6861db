package proc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spawnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codenav_proc_spawned_total",
		Help: "External commands started.",
	})
	failedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codenav_proc_failed_total",
		Help: "External commands that failed, by kind (spawn, stream, tool).",
	}, []string{"kind"})
)
