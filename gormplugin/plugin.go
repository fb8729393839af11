// Package gormplugin runs a veil.Pipeline inside gorm.
//
// Models passed to Create, Save, Updates and Delete are digested and
// encrypted in place before the statement is built, so the value the
// caller holds afterwards is the stored form. Column maps built by Update
// and Updates are sealed through the statement's model: protected columns
// are replaced by their envelopes and digest columns are added. Query
// results are decrypted and masked after the rows are scanned.
//
//	db.Use(gormplugin.New(pipeline))
package gormplugin

import (
	"log/slog"
	"reflect"

	"gorm.io/gorm"

	"github.com/zoobzio/veil"
)

// Name is the plugin name registered with gorm.
const Name = "veil"

// Plugin implements gorm.Plugin.
type Plugin struct {
	pipeline *veil.Pipeline
	logger   *slog.Logger
}

var _ gorm.Plugin = (*Plugin)(nil)

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New returns a plugin applying pipeline.
func New(pipeline *veil.Pipeline, opts ...Option) *Plugin {
	p := &Plugin{pipeline: pipeline, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return Name
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// Sealing may create keys through a store on this same connection pool,
	// so it runs before gorm opens the statement's transaction.
	if err := cb.Create().Before("gorm:begin_transaction").Register("veil:before_create", p.beforeWrite("create")); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:begin_transaction").Register("veil:before_update", p.beforeWrite("update")); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:begin_transaction").Register("veil:before_delete", p.beforeWrite("delete")); err != nil {
		return err
	}
	return cb.Query().After("gorm:query").Register("veil:after_query", p.afterQuery)
}

func (p *Plugin) beforeWrite(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Error != nil || db.Statement.Dest == nil {
			return
		}
		ctx := db.Statement.Context
		var err error
		if values, ok := db.Statement.Dest.(map[string]any); ok {
			err = p.sealColumns(db, values)
		} else {
			_, err = p.pipeline.BeforeWrite(ctx, db.Statement.Dest)
		}
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to prepare model for write",
				"operation", op,
				"table", db.Statement.Table,
				"error", err,
			)
			_ = db.AddError(err)
		}
	}
}

// sealColumns stages a column map on a fresh model value, seals it and
// writes every column the pipeline changed back into the map.
func (p *Plugin) sealColumns(db *gorm.DB, values map[string]any) error {
	sch := db.Statement.Schema
	if sch == nil || len(values) == 0 {
		return nil
	}
	ctx := db.Statement.Context
	model := reflect.New(sch.ModelType)
	rv := model.Elem()

	keys := make(map[string]string, len(values))
	for key, v := range values {
		f := sch.LookUpField(key)
		if f == nil {
			continue
		}
		if err := f.Set(ctx, rv, v); err != nil {
			p.logger.WarnContext(ctx, "column left unsealed",
				"operation", "update",
				"table", sch.Table,
				"column", key,
				"error", err,
			)
			continue
		}
		keys[f.Name] = key
	}

	before := make(map[string]any, len(sch.Fields))
	for _, f := range sch.Fields {
		before[f.Name], _ = f.ValueOf(ctx, rv)
	}
	if _, err := p.pipeline.BeforeWrite(ctx, model.Interface()); err != nil {
		return err
	}
	for _, f := range sch.Fields {
		after, _ := f.ValueOf(ctx, rv)
		if reflect.DeepEqual(before[f.Name], after) {
			continue
		}
		if key, ok := keys[f.Name]; ok {
			values[key] = after
		} else if f.DBName != "" {
			values[f.DBName] = after
		}
	}
	return nil
}

func (p *Plugin) afterQuery(db *gorm.DB) {
	if db.Error != nil || db.Statement.Dest == nil {
		return
	}
	p.pipeline.AfterRead(db.Statement.Context, db.Statement.Dest)
}
