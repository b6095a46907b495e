// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package metrics records the outcome of a run for the node exporter
// textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the gauges of one run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	stanzas    prometheus.Gauge
	removed    prometheus.Gauge
	registered prometheus.Gauge
	lastRun    prometheus.Gauge
}

// NewRecorder returns a Recorder with all gauges registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stanzas: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buildkernel_stanzas",
			Help: "Boot menu entries left in grub.conf after the last run",
		}),
		removed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buildkernel_removed_kernels",
			Help: "Kernels evicted from the boot menu by the last run",
		}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buildkernel_kernel_registered",
			Help: "1 if the last run added a new boot menu entry",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buildkernel_last_run_timestamp_seconds",
			Help: "Time the last run finished",
		}),
	}
	r.registry.MustRegister(r.stanzas, r.removed, r.registered, r.lastRun)
	return r
}

// Observe records a finished run.
func (r *Recorder) Observe(stanzas, removed int, added bool, at time.Time) {
	r.stanzas.Set(float64(stanzas))
	r.removed.Set(float64(removed))
	if added {
		r.registered.Set(1)
	} else {
		r.registered.Set(0)
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the gauges to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("Could not write metrics to %s: %w", path, err)
	}
	return nil
}
