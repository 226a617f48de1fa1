// Package orm is the entry point: it wires declared table schemas to a
// backend (or the in-process dev store), migrates or validates the schema
// on startup, and hands out table instances for CRUD, queries and joins.
package orm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/migrate"
	"github.com/raisfeld-ori/appwrite-orm/schema"
	"github.com/raisfeld-ori/appwrite-orm/store"
	"github.com/raisfeld-ori/appwrite-orm/store/appwrite"
	"github.com/raisfeld-ori/appwrite-orm/store/devstore"
	"github.com/raisfeld-ori/appwrite-orm/table"
)

type ORM struct {
	cfg    Config
	log    *zap.SugaredLogger
	tables map[string]*table.Table
	dev    *devstore.Store
}

// New validates the config, connects the stores, runs the startup schema
// step (migrate and/or validate), and builds one table instance per
// definition. Table definitions are immutable after this point.
func New(ctx context.Context, cfg Config, defs ...schema.Table) (*ORM, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	o := &ORM{cfg: cfg, log: log, tables: map[string]*table.Table{}}

	var docs store.DocumentStore
	var schemas store.SchemaStore
	var sub store.Subscriber

	if cfg.Development {
		dev, err := devstore.New(devstore.Options{
			Dir:      cfg.DataDir,
			Interval: cfg.PollInterval,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		o.dev = dev
		docs, schemas, sub = dev, dev, dev
	} else {
		client := appwrite.NewClient(cfg.Endpoint, cfg.ProjectID, cfg.APIKey, log)
		docs, schemas = client, client
		sub = appwrite.NewRealtime(cfg.Endpoint, cfg.ProjectID, log)
	}

	engine := migrate.NewEngine(schemas, cfg.DatabaseID, log)
	if cfg.AutoMigrate {
		if err := engine.Migrate(ctx, defs); err != nil {
			o.Close()
			return nil, err
		}
	} else if !cfg.SkipValidate {
		if err := engine.Validate(ctx, defs); err != nil {
			o.Close()
			return nil, err
		}
	}

	for _, def := range defs {
		if _, ok := o.tables[def.Name]; ok {
			o.Close()
			return nil, fmt.Errorf("duplicate table definition %q", def.Name)
		}
		o.tables[def.Name] = table.New(def, cfg.DatabaseID, docs, sub, log)
	}

	return o, nil
}

// Table returns the instance for a declared table name, or nil when no
// such table was declared.
func (o *ORM) Table(name string) *table.Table {
	return o.tables[name]
}

// Close tears down every table's listeners and, in development mode, the
// dev store's change watcher. Safe to call more than once.
func (o *ORM) Close() {
	for _, t := range o.tables {
		t.CloseListeners()
	}
	if o.dev != nil {
		o.dev.Close()
	}
}
