package recorder

// NoopRecorder is used when no audit database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrade(_ *TradeEvent) error { return nil }
func (n *NoopRecorder) Close() error                    { return nil }
