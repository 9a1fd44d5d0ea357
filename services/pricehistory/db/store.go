package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Open opens (creating if necessary) the sqlite mirror of the daily
// average history and applies the schema.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		os.MkdirAll(filepath.Dir(path), 0777)
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// in-memory databases are per-connection, a second connection would
	// see a separate empty database
	database.SetMaxOpenConns(1)

	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}

type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

type DailyAverageRow struct {
	Metal       string
	Date        string
	K22         int64
	K21         int64
	K18         int64
	Traditional int64
}

const upsertDailyAverage = `INSERT INTO daily_averages (metal, date, k22, k21, k18, traditional)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (metal, date) DO UPDATE SET
    k22 = excluded.k22,
    k21 = excluded.k21,
    k18 = excluded.k18,
    traditional = excluded.traditional`

func (q *Queries) UpsertDailyAverage(ctx context.Context, row DailyAverageRow) error {
	_, err := q.db.ExecContext(ctx, upsertDailyAverage,
		row.Metal, row.Date, row.K22, row.K21, row.K18, row.Traditional,
	)
	if err != nil {
		return fmt.Errorf("upsert daily average: %w", err)
	}
	return nil
}

const getDailyAverages = `SELECT metal, date, k22, k21, k18, traditional
FROM daily_averages
WHERE metal = ?
ORDER BY date ASC`

func (q *Queries) GetDailyAverages(ctx context.Context, metal string) ([]DailyAverageRow, error) {
	rows, err := q.db.QueryContext(ctx, getDailyAverages, metal)
	if err != nil {
		return nil, fmt.Errorf("get daily averages: %w", err)
	}
	defer rows.Close()

	var out []DailyAverageRow
	for rows.Next() {
		var r DailyAverageRow
		err := rows.Scan(&r.Metal, &r.Date, &r.K22, &r.K21, &r.K18, &r.Traditional)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
