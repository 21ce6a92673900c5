package logging

import (
	"context"
)

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	sensorIDKey contextKey = "sensor_id"
)

// WithRunID tags the context with a calibration run id
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithSensorID tags the context with the sensor being worked on
func WithSensorID(ctx context.Context, sensorID string) context.Context {
	return context.WithValue(ctx, sensorIDKey, sensorID)
}

// extractContextFields extracts logging fields from context
func extractContextFields(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, "run_id", runID)
	}

	if sensorID, ok := ctx.Value(sensorIDKey).(string); ok && sensorID != "" {
		fields = append(fields, "sensor_id", sensorID)
	}

	return fields
}
