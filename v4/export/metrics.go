// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	finishedSizeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seed_dumpling",
			Subsystem: "dump",
			Name:      "finished_size",
			Help:      "counter for seed-dumpling written bytes",
		}, []string{"model"})
	finishedRecordsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seed_dumpling",
			Subsystem: "dump",
			Name:      "finished_records",
			Help:      "counter for seed-dumpling finished records",
		}, []string{"model"})
	finishedBatchesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seed_dumpling",
			Subsystem: "dump",
			Name:      "finished_batches",
			Help:      "counter for seed-dumpling finished batches",
		}, []string{"model"})
	materializedAttachmentsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seed_dumpling",
			Subsystem: "attachment",
			Name:      "materialized",
			Help:      "counter for blobs copied into the seed files directory",
		})
	fetchBatchTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seed_dumpling",
			Subsystem: "dump",
			Name:      "fetch_batch_duration_time",
			Help:      "Bucketed histogram of fetch time (s) of record batches",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 20),
		}, []string{"model"})
	writeTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seed_dumpling",
			Subsystem: "write",
			Name:      "write_duration_time",
			Help:      "Bucketed histogram of write time (s) of seed chunks",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 20),
		}, []string{"model"})
	errorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seed_dumpling",
			Subsystem: "dump",
			Name:      "error_count",
			Help:      "Total error count during dumping progress",
		}, []string{"model"})
)

// RegisterMetrics registers metrics.
func RegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(finishedSizeCounter)
	registry.MustRegister(finishedRecordsCounter)
	registry.MustRegister(finishedBatchesCounter)
	registry.MustRegister(materializedAttachmentsCounter)
	registry.MustRegister(fetchBatchTimeHistogram)
	registry.MustRegister(writeTimeHistogram)
	registry.MustRegister(errorCount)
}

// RemoveModelMetrics drops the series of one model.
func RemoveModelMetrics(model string) {
	labels := prometheus.Labels{"model": model}
	finishedSizeCounter.Delete(labels)
	finishedRecordsCounter.Delete(labels)
	finishedBatchesCounter.Delete(labels)
	fetchBatchTimeHistogram.Delete(labels)
	writeTimeHistogram.Delete(labels)
	errorCount.Delete(labels)
}
