package cmd

import (
	"fmt"

	"github.com/voicemap/voicemap/internal/config"
	"github.com/voicemap/voicemap/internal/eventlog"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newEventLog builds the display log, with the SQLite archive behind it
// when configured.
func newEventLog(cfg *config.Config) (*eventlog.Log, error) {
	var store eventlog.Store = eventlog.NoopStore{}
	if cfg.EventLog.Archive {
		path, err := eventlog.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve archive path: %w", err)
		}
		s, err := eventlog.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("open event archive: %w", err)
		}
		store = s
	}
	return eventlog.New(cfg.EventLog.MaxEntries, store), nil
}
