// Copyright 2025 The tidewire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics implements a Prometheus adapter for transport.Metrics.
// It is deliberately kept outside the core import graph: transport and
// the protocol codecs depend only on the transport.Metrics interface,
// and only cmd/tidewired imports this package to wire a concrete
// implementation in at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tidewire/tidewire/common"
)

// Prometheus implements transport.Metrics over a set of
// process-registered collectors.
type Prometheus struct {
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter
	activeConnections prometheus.Gauge
	bytesRead         prometheus.Counter
	bytesWritten      prometheus.Counter
	parseErrors       prometheus.Counter
}

// NewPrometheus registers the adapter's collectors against reg and
// returns it ready to hand to transport.Options.Metrics.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		connectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "transport",
			Name:      "connections_opened_total",
			Help:      "Total accepted connections.",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "transport",
			Name:      "connections_closed_total",
			Help:      "Total closed connections.",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: common.App,
			Subsystem: "transport",
			Name:      "active_connections",
			Help:      "Currently open connections.",
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "transport",
			Name:      "bytes_read_total",
			Help:      "Total bytes read from client sockets.",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "transport",
			Name:      "bytes_written_total",
			Help:      "Total bytes written to client sockets.",
		}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "transport",
			Name:      "parse_errors_total",
			Help:      "Total codec parse errors that closed a connection.",
		}),
	}
}

func (p *Prometheus) ConnectionOpened() {
	p.connectionsOpened.Inc()
	p.activeConnections.Inc()
}

func (p *Prometheus) ConnectionClosed() {
	p.connectionsClosed.Inc()
	p.activeConnections.Dec()
}

func (p *Prometheus) BytesRead(n int) { p.bytesRead.Add(float64(n)) }

func (p *Prometheus) BytesWritten(n int) { p.bytesWritten.Add(float64(n)) }

func (p *Prometheus) ParseError() { p.parseErrors.Inc() }

// PanicCounter returns a hook suitable for internal/rescue.PanicCounter,
// wiring recovered reactor panics into the same registry.
func (p *Prometheus) PanicCounter(reg prometheus.Registerer) func() {
	counter := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "panic_total",
		Help:      "Total recovered panics in reactor goroutines.",
	})
	return counter.Inc
}
