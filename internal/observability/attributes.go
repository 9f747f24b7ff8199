// Package observability provides metrics, tracing, and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"geotask/pkg/gpjob"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrMode    = "mode"
	attrOutcome = "outcome"
	attrFailed  = "failed"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with IDs to reduce cardinality
	// /v1/analyses/abc123 -> /v1/analyses/{jobId}
	normalized := normalizePath(path)
	return attribute.String(attrPath, normalized)
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func modeAttr(mode gpjob.ExecutionMode) attribute.KeyValue {
	return attribute.String(attrMode, string(mode))
}

func outcomeAttr(status gpjob.Status) attribute.KeyValue {
	return attribute.String(attrOutcome, string(status))
}

func failedAttr(failed bool) attribute.KeyValue {
	return attribute.Bool(attrFailed, failed)
}

// normalizePath replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	const prefix = "/v1/analyses/"
	if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
		switch {
		case strings.HasSuffix(path, "/result"):
			return "/v1/analyses/{jobId}/result"
		case strings.HasSuffix(path, "/cancel"):
			return "/v1/analyses/{jobId}/cancel"
		default:
			return "/v1/analyses/{jobId}"
		}
	}
	return path
}

// WithMethod returns a metric option with the method attribute.
func WithMethod(method string) metric.MeasurementOption {
	return metric.WithAttributes(methodAttr(method))
}

// WithPath returns a metric option with the path attribute.
func WithPath(path string) metric.MeasurementOption {
	return metric.WithAttributes(pathAttr(path))
}

// WithStatus returns a metric option with the status attribute.
func WithStatus(code int) metric.MeasurementOption {
	return metric.WithAttributes(statusAttr(code))
}

// WithMode returns a metric option with the execution mode attribute.
func WithMode(mode gpjob.ExecutionMode) metric.MeasurementOption {
	return metric.WithAttributes(modeAttr(mode))
}

// WithOutcome returns a metric option with the terminal outcome attribute.
func WithOutcome(status gpjob.Status) metric.MeasurementOption {
	return metric.WithAttributes(outcomeAttr(status))
}
