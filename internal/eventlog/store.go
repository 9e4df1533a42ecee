package eventlog

import "context"

// Store archives log entries beyond the in-memory cap. Implementations must
// be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NoopStore discards everything. Used when archiving is disabled.
type NoopStore struct{}

func (NoopStore) Append(ctx context.Context, e Entry) error { return nil }

func (NoopStore) Recent(ctx context.Context, limit int) ([]Entry, error) { return nil, nil }

func (NoopStore) Close() error { return nil }
