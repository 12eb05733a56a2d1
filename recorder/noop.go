package recorder

import "context"

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(context.Context, *RunRecord) error { return nil }
func (n *NoopRecorder) Close() error                                { return nil }
