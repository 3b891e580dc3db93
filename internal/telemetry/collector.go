/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"github.com/ayushbirla71/adupApp/internal/events"
)

// Collector feeds bus events into the Prometheus metrics. Start it
// once; it runs until the process exits.
type Collector struct {
	bus *events.Bus
}

// NewCollector creates a collector over the bus.
func NewCollector(bus *events.Bus) *Collector {
	return &Collector{bus: bus}
}

// Start subscribes to the metric-bearing events and updates gauges and
// counters as they arrive.
func (c *Collector) Start() {
	go c.consume(c.bus.Subscribe(events.EventDownloadCompleted), func(events.Payload) {
		DownloadsTotal.WithLabelValues("success").Inc()
	})
	go c.consume(c.bus.Subscribe(events.EventDownloadFailed), func(events.Payload) {
		DownloadsTotal.WithLabelValues("failure").Inc()
	})
	go c.consume(c.bus.Subscribe(events.EventFileEvicted), func(events.Payload) {
		EvictionsTotal.Inc()
	})
	go c.consume(c.bus.Subscribe(events.EventReconcileDone), func(p events.Payload) {
		if ms, ok := p["duration_ms"].(int64); ok {
			ReconcileDuration.Observe(float64(ms) / 1000)
		}
	})
	go c.consume(c.bus.Subscribe(events.EventPlaybackLoop), func(p events.Payload) {
		if gen, ok := p["generation"].(uint64); ok {
			LoopGeneration.Set(float64(gen))
		}
	})
}

func (c *Collector) consume(sub events.Subscriber, fn func(events.Payload)) {
	for payload := range sub {
		fn(payload)
	}
}
