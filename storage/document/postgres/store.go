// Package pgstore implements document.Store on Postgres: one JSONB row per
// document path, LISTEN/NOTIFY for live subscriptions.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/storage/document"
)

const notifyChannel = "documents_changed"

// orderByRegex guards the ORDER BY identifier; field names come from app code,
// never from requests, but belt and braces.
var orderByRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Store struct {
	db     *sqlx.DB
	dsn    string
	logger core.Logger
}

var _ document.Store = (*Store)(nil)

func NewStore(db *sqlx.DB, dsn string, logger core.Logger) *Store {
	return &Store{db: db, dsn: dsn, logger: logger}
}

type docRow struct {
	Path      string    `db:"path"`
	Fields    []byte    `db:"fields"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r docRow) toDocument() (document.Document, error) {
	fields := make(map[string]interface{})
	if err := json.Unmarshal(r.Fields, &fields); err != nil {
		return document.Document{}, errors.Wrap(err, "decoding document fields")
	}
	return document.Document{
		Path:      r.Path,
		Fields:    fields,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) Get(ctx context.Context, path string) (document.Document, error) {
	var row docRow
	err := s.db.GetContext(ctx, &row,
		`SELECT path, fields, created_at, updated_at FROM documents WHERE path = $1`, path)
	if err == sql.ErrNoRows {
		return document.Document{}, document.ErrNotFound
	}
	if err != nil {
		return document.Document{}, errors.Wrap(err, "getting document")
	}
	return row.toDocument()
}

func (s *Store) Set(ctx context.Context, path string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encoding document fields")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (path)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`,
		path, document.Collection(path), body)
	return errors.Wrap(err, "setting document")
}

func (s *Store) Update(ctx context.Context, path string, patch map[string]interface{}) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return errors.Wrap(err, "encoding document patch")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET fields = fields || $2, updated_at = now() WHERE path = $1`, path, body)
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	return errors.Wrap(err, "deleting document")
}

func buildQuery(collection string, opts document.QueryOpts) (string, []interface{}, error) {
	q := `SELECT path, fields, created_at, updated_at FROM documents WHERE collection = $1`
	args := []interface{}{collection}

	for _, w := range opts.Where {
		filter, err := json.Marshal(map[string]interface{}{w.Field: w.Value})
		if err != nil {
			return "", nil, errors.Wrap(err, "encoding query filter")
		}
		args = append(args, filter)
		q += fmt.Sprintf(" AND fields @> $%d", len(args))
	}

	if opts.OrderBy != "" {
		if !orderByRegex.MatchString(opts.OrderBy) {
			return "", nil, errors.Errorf("invalid order field: %s", opts.OrderBy)
		}
		q += fmt.Sprintf(" ORDER BY fields->>'%s'", opts.OrderBy)
		if opts.Descending {
			q += " DESC"
		}
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return q, args, nil
}

func (s *Store) Query(ctx context.Context, collection string, opts document.QueryOpts) ([]document.Document, error) {
	q, args, err := buildQuery(collection, opts)
	if err != nil {
		return nil, err
	}

	var rows []docRow
	if err = s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}

	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(document.Tx) error) error {
	dbTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	t := &tx{ctx: ctx, tx: dbTx}
	if err = fn(t); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	return errors.Wrap(dbTx.Commit(), "committing transaction")
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

var _ document.Tx = (*tx)(nil)

func (t *tx) Get(path string) (document.Document, error) {
	var row docRow
	err := t.tx.GetContext(t.ctx, &row,
		`SELECT path, fields, created_at, updated_at FROM documents WHERE path = $1 FOR UPDATE`, path)
	if err == sql.ErrNoRows {
		return document.Document{}, document.ErrNotFound
	}
	if err != nil {
		return document.Document{}, errors.Wrap(err, "getting document")
	}
	return row.toDocument()
}

func (t *tx) Set(path string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encoding document fields")
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO documents (path, collection, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (path)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`,
		path, document.Collection(path), body)
	return errors.Wrap(err, "setting document")
}

func (t *tx) Update(path string, patch map[string]interface{}) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return errors.Wrap(err, "encoding document patch")
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE documents SET fields = fields || $2, updated_at = now() WHERE path = $1`, path, body)
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (t *tx) Delete(path string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM documents WHERE path = $1`, path)
	return errors.Wrap(err, "deleting document")
}
