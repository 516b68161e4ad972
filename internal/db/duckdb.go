package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Open opens a DuckDB database under DataDir/duckdb.
func Open(cfg Config) (*sql.DB, error) {
	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	return conn, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

const schema = `
CREATE OR REPLACE TABLE sections (
	line     INTEGER,
	status   VARCHAR,
	name     VARCHAR,
	group_id VARCHAR,
	length_m DOUBLE
);
CREATE OR REPLACE TABLE counts (
	id_pdc    VARCHAR,
	name      VARCHAR,
	ts        VARCHAR,
	count     DOUBLE
);`

// Mirror replaces the sections and counts tables with the given line
// sections and counter features.
func Mirror(ctx context.Context, conn *sql.DB, sections, counters []*geojson.Feature) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	ins, err := tx.PrepareContext(ctx, "INSERT INTO sections VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer ins.Close()
	for _, f := range sections {
		group, _ := mapview.GroupOf(f)
		name := f.Properties.MustString(mapview.PropName, "")
		if _, err := ins.ExecContext(ctx, mapview.LineOf(f), string(mapview.StatusOf(f)), name, group, geo.Length(f.Geometry)); err != nil {
			return fmt.Errorf("inserting section: %w", err)
		}
	}

	cins, err := tx.PrepareContext(ctx, "INSERT INTO counts VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer cins.Close()
	rows := 0
	for _, f := range counters {
		id, _ := mapview.IDPdcOf(f)
		name := f.Properties.MustString(mapview.PropName, "")
		for _, c := range mapview.CountsOf(f) {
			if _, err := cins.ExecContext(ctx, id, name, c.Timestamp, c.Count); err != nil {
				return fmt.Errorf("inserting count: %w", err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("Mirrored features", "svc", "db", "sections", len(sections), "counts", rows)
	return nil
}

// StatusStats summarises the sections of one status.
type StatusStats struct {
	Status   string  `json:"status" doc:"Section status"`
	Sections int     `json:"sections" doc:"Number of sections"`
	LengthKm float64 `json:"lengthKm" doc:"Total length in kilometres"`
}

// Stats returns per-status section totals, ordered by status.
func Stats(ctx context.Context, conn *sql.DB) ([]StatusStats, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT status, count(*), coalesce(sum(length_m), 0) / 1000
		FROM sections GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusStats
	for rows.Next() {
		var s StatusStats
		if err := rows.Scan(&s.Status, &s.Sections, &s.LengthKm); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
