package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"sigtrip_wrapper/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Repo is the MySQL booking journal.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open connects and pings with the given DSN. The DSN must set parseTime=true.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return New(db), nil
}

func (r *Repo) Record(ctx context.Context, e domain.JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertJournalSQL,
		e.Operation,
		e.Provider,
		e.ProviderReference,
		valStr(e.OfferID),
		e.Status,
		valStr(e.ErrorCode),
		valJSON(e.PayloadJSON),
		e.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) ListByReference(ctx context.Context, ref string, limit int) ([]domain.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, listJournalByRefSQL, ref, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var offerID, errorCode sql.NullString
		var payload []byte
		if err := rows.Scan(
			&e.ID,
			&e.Operation,
			&e.Provider,
			&e.ProviderReference,
			&offerID,
			&e.Status,
			&errorCode,
			&payload,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.OfferID = offerID.String
		e.ErrorCode = errorCode.String
		if len(payload) > 0 {
			e.PayloadJSON = payload
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) Close() error { return r.db.Close() }
