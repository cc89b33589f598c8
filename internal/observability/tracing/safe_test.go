package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesFiltersUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/pools/:id"),
		attribute.String("owner_id", "user_1"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorReturnsRootCause(t *testing.T) {
	root := errors.New("insufficient_credits")
	wrapped := fmt.Errorf("reserve pool 42 with sql UPDATE ...: %w", root)

	got := SafeError(wrapped)
	assert.EqualError(t, got, "insufficient_credits")
	assert.Nil(t, SafeError(nil))
}
