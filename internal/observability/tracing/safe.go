package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

var allowedAttributeKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"pool_id":                 {},
	"service_id":              {},
}

// SafeAttributes drops attributes that could carry owner identifiers or payload data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError strips wrapped detail (SQL text, bound values) before recording on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return errors.New(err.Error())
		}
		err = next
	}
}
