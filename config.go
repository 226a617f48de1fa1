package orm

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	// Endpoint is the backend base url, e.g. "https://cloud.appwrite.io/v1".
	Endpoint  string
	ProjectID string
	// DatabaseID scopes every collection the ORM manages.
	DatabaseID string
	// APIKey is optional; without it only anonymous-role operations succeed.
	APIKey string

	// AutoMigrate reconciles the backend schema on startup. It implies
	// validation: a migrated schema is by definition a checked one.
	AutoMigrate bool
	// SkipValidate disables the startup schema check. Ignored when
	// AutoMigrate is set.
	SkipValidate bool

	// Development swaps the backend for the in-process dev store. Endpoint,
	// ProjectID and APIKey are not required in this mode.
	Development bool
	// DataDir persists dev-store state between runs; empty keeps it in
	// memory only. Server mode ignores it.
	DataDir string
	// PollInterval tunes the dev store's change-detection poll; defaults
	// to one second.
	PollInterval time.Duration

	Logger *zap.SugaredLogger
}

func (c Config) validate() error {
	if c.DatabaseID == "" {
		return fmt.Errorf("config: DatabaseID is required")
	}
	if c.Development {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("config: Endpoint is required outside development mode")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("config: ProjectID is required outside development mode")
	}
	return nil
}
