package service

import "github.com/prometheus/client_golang/prometheus"

var authOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "auth_operations_total", Help: "Count of authentication operations by result"},
	[]string{"op", "result"},
)

func init() { prometheus.MustRegister(authOps) }

func observe(op string, err error) {
	authOps.WithLabelValues(op, errKind(err)).Inc()
}
