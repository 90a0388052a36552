package mysql

import (
	"context"
	"database/sql"
	"time"

	"review_harvester/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valDate(s string) any {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return nil
	}
	return s
}

// Repo is the MySQL ReviewStore: one row per review, unique per target
// and fingerprint.
type Repo struct{ db *sql.DB }

var (
	_ domain.ReviewStore  = (*Repo)(nil)
	_ domain.ReviewReader = (*Repo)(nil)
)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Location(key string) string { return "mysql:reviews/" + key }

func (r *Repo) Load(ctx context.Context, key string) (*domain.IdentityIndex, int, error) {
	rows, err := r.db.QueryContext(ctx, loadFingerprintsSQL, key)
	if err != nil {
		return nil, 0, &domain.StoreError{Key: key, Op: "load", Err: err}
	}
	defer rows.Close()

	idx := domain.NewIdentityIndex()
	n := 0
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, 0, &domain.StoreError{Key: key, Op: "load", Err: err}
		}
		idx.Add(domain.Fingerprint(fp))
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &domain.StoreError{Key: key, Op: "load", Err: err}
	}
	return idx, n, nil
}

// Append commits one row per call; the statement is autocommitted.
func (r *Repo) Append(ctx context.Context, key string, rv domain.Review) error {
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		key,
		string(rv.Fingerprint()),
		rv.Company,
		valDate(rv.Date),
		valStr(rv.Author),
		rv.Body,
		valStr(rv.Heading),
		valInt(rv.Rating),
		valStr(rv.Location),
		rv.ScrapedAt.UTC(),
		rv.SourceURL,
	)
	if err != nil {
		return &domain.StoreError{Key: key, Op: "append", Err: err}
	}
	return nil
}

func (r *Repo) List(ctx context.Context, key string, limit int) (domain.ReviewsPage, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countReviewsSQL, key).Scan(&total); err != nil {
		return domain.ReviewsPage{}, err
	}
	if total == 0 {
		return domain.ReviewsPage{}, domain.ErrNotFound
	}

	rows, err := r.db.QueryContext(ctx, listReviewsSQL, key, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	out := domain.ReviewsPage{Total: total, Items: make([]domain.Review, 0, limit)}
	for rows.Next() {
		var (
			rv                        domain.Review
			date                      sql.NullTime
			author, heading, location sql.NullString
			rating                    sql.NullInt64
		)
		if err := rows.Scan(&rv.Company, &date, &author, &rv.Body, &heading, &rating, &location, &rv.ScrapedAt, &rv.SourceURL); err != nil {
			return domain.ReviewsPage{}, err
		}
		if date.Valid {
			rv.Date = date.Time.Format(time.DateOnly)
		}
		rv.Author, rv.Heading, rv.Location = author.String, heading.String, location.String
		if rating.Valid {
			x := int(rating.Int64)
			rv.Rating = &x
		}
		rv.ScrapedAt = rv.ScrapedAt.UTC()
		out.Items = append(out.Items, rv)
	}
	return out, rows.Err()
}
