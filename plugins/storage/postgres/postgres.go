// Package postgres implements a TopicStorage plugin on top of
// database/sql + github.com/lib/pq: one table per topic, created at Init,
// with a JSONB value column so arbitrary structured documents round-trip
// without a schema migration per topic.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "dsn", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "lib/pq connection string"},
		{Name: "table", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "table name this storage instance persists into"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindTopicStorage, "postgres", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(cfg.String("dsn", ""), cfg.String("table", ""))
	})
}

// Storage persists records into one Postgres table via database/sql.
type Storage struct {
	db    *sql.DB
	table string
}

// New opens the connection pool; the table itself is created in Init once
// the topic's schema (possibly nil) is known.
func New(dsn, table string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, "postgres", "failed to open connection", err)
	}
	if err := db.Ping(); err != nil {
		return nil, perr.Wrap(perr.KindIO, "postgres", "failed to ping database", err)
	}
	return &Storage{db: db, table: table}, nil
}

func (s *Storage) Init(schema *record.Schema) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ts_ms BIGINT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			raw_bytes BYTEA,
			raw_format TEXT
		)`, pqIdent(s.table)))
	if err != nil {
		return perr.Wrap(perr.KindIO, "postgres", "create table failed", err)
	}
	_, err = s.db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_ts_idx ON %s (ts_ms)`, s.table, pqIdent(s.table)))
	if err != nil {
		return perr.Wrap(perr.KindIO, "postgres", "create index failed", err)
	}
	return nil
}

func (s *Storage) Save(records []record.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return perr.Wrap(perr.KindIO, "postgres", "begin tx failed", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s (ts_ms, key, value, raw_bytes, raw_format) VALUES ($1, $2, $3, $4, $5)`, pqIdent(s.table)))
	if err != nil {
		tx.Rollback()
		return perr.Wrap(perr.KindIO, "postgres", "prepare insert failed", err)
	}
	defer stmt.Close()

	for _, r := range records {
		valueJSON, err := json.Marshal(r.Value)
		if err != nil {
			tx.Rollback()
			return perr.Wrap(perr.KindFormat, "postgres", "marshal value failed", err)
		}
		var rawBytes []byte
		var rawFormat *string
		if r.Raw != nil {
			rawBytes = r.Raw.Bytes
			f := string(r.Raw.Format)
			rawFormat = &f
		}
		if _, err := stmt.Exec(r.TsMs, r.Key, valueJSON, rawBytes, rawFormat); err != nil {
			tx.Rollback()
			return perr.Wrap(perr.KindIO, "postgres", "insert failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return perr.Wrap(perr.KindIO, "postgres", "commit failed", err)
	}
	return nil
}

func (s *Storage) Query(q topic.Query) (topic.QueryResult, error) {
	where := "WHERE 1=1"
	args := []any{}
	n := 1
	if q.Key != nil {
		where += fmt.Sprintf(" AND key = $%d", n)
		args = append(args, *q.Key)
		n++
	}
	if q.FromMs != nil {
		where += fmt.Sprintf(" AND ts_ms >= $%d", n)
		args = append(args, *q.FromMs)
		n++
	}
	if q.ToMs != nil {
		where += fmt.Sprintf(" AND ts_ms < $%d", n)
		args = append(args, *q.ToMs)
		n++
	}

	order := "ASC"
	if q.Order == topic.OrderDesc {
		order = "DESC"
	}

	var query string
	if q.Limit != nil && q.Offset == nil {
		// Limit without offset: the limit most-recent matches, regardless of
		// the requested presentation order — select them via an inner
		// DESC-limited subquery, then present in the requested order.
		inner := fmt.Sprintf("SELECT ts_ms, key, value, raw_bytes, raw_format FROM %s %s ORDER BY ts_ms DESC LIMIT %d",
			pqIdent(s.table), where, *q.Limit)
		query = fmt.Sprintf("SELECT ts_ms, key, value, raw_bytes, raw_format FROM (%s) recent ORDER BY ts_ms %s", inner, order)
	} else {
		query = fmt.Sprintf("SELECT ts_ms, key, value, raw_bytes, raw_format FROM %s %s ORDER BY ts_ms %s", pqIdent(s.table), where, order)
		if q.Limit != nil {
			query += fmt.Sprintf(" LIMIT %d", *q.Limit)
			if q.Offset != nil {
				query += fmt.Sprintf(" OFFSET %d", *q.Offset)
			}
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return topic.QueryResult{}, perr.Wrap(perr.KindIO, "postgres", "select failed", err)
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		var r record.Record
		var valueJSON []byte
		var rawBytes []byte
		var rawFormat *string
		if err := rows.Scan(&r.TsMs, &r.Key, &valueJSON, &rawBytes, &rawFormat); err != nil {
			return topic.QueryResult{}, perr.Wrap(perr.KindIO, "postgres", "scan failed", err)
		}
		if err := json.Unmarshal(valueJSON, &r.Value); err != nil {
			return topic.QueryResult{}, perr.Wrap(perr.KindFormat, "postgres", "unmarshal value failed", err)
		}
		if rawFormat != nil {
			r.Raw = &record.Raw{Bytes: rawBytes, Format: record.DataFormat(*rawFormat)}
		}
		records = append(records, r)
	}
	return topic.QueryResult{Records: records}, rows.Err()
}

func (s *Storage) Flush() error { return nil }

func (s *Storage) Close() error { return s.db.Close() }

// pqIdent double-quotes an identifier for safe interpolation into DDL/DML
// built from configuration-supplied table names.
func pqIdent(name string) string {
	return `"` + name + `"`
}
