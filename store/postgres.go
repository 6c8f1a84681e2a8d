package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/db"
)

// settingsKey is the kv row holding the JSON settings document.
const settingsKey = "settings"

// Postgres stores settings as one JSON document in the kv table.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres returns a store backed by database. The kv table must exist (db.Migrate).
func NewPostgres(database *sql.DB) *Postgres {
	return &Postgres{DB: database}
}

func (p *Postgres) Load(ctx context.Context, dst *config.Settings) error {
	v, err := db.GetKV(ctx, p.DB, settingsKey)
	if errors.Is(err, db.ErrNoValue) || (err == nil && v == "") {
		return config.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read settings row: %w", err)
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return fmt.Errorf("parse settings row: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, s config.Settings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return db.SetKV(ctx, p.DB, settingsKey, string(b))
}
