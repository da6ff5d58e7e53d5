package fees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// StudentRef is the id/name projection of a roster entry used by the
// resolver. Name is empty when the stored name is NULL.
type StudentRef struct {
	ID   int64
	Name string
}

// StatusRow is a per-date payment/suspension record. Rows are keyed by
// (date, name) as typed by an operator; there is no foreign key to the
// roster.
type StatusRow struct {
	Name    string
	Cash    bool
	Online  bool
	Suspend bool
}

// Repository runs the fee-status queries against Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DueStudents returns students whose admission day-of-month equals day and
// whose admission date is on or before the YYYY-MM-DD bound, ordered by name.
func (r *Repository) DueStudents(ctx context.Context, day int, onOrBefore string) ([]StudentRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name
		FROM student_management.students s
		WHERE EXTRACT(DAY FROM s.admission_date) = $1
		  AND DATE(s.admission_date) <= $2
		ORDER BY s.name ASC
	`, day, onOrBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRefs(rows)
}

// StudentsByDay returns students by admission day-of-month with no date
// bound. Only the deprecated previous-day endpoint uses it.
func (r *Repository) StudentsByDay(ctx context.Context, day int) ([]StudentRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name
		FROM student_management.students
		WHERE EXTRACT(DAY FROM admission_date) = $1
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRefs(rows)
}

// StatusesNormalized returns status rows for the date whose lowercased,
// trimmed name is one of names (themselves already normalized).
func (r *Repository) StatusesNormalized(ctx context.Context, date string, names []string) ([]StatusRow, error) {
	return r.statuses(ctx, date, "LOWER(TRIM(name))", names)
}

// StatusesExact returns status rows for the date matching names exactly.
func (r *Repository) StatusesExact(ctx context.Context, date string, names []string) ([]StatusRow, error) {
	return r.statuses(ctx, date, "name", names)
}

func (r *Repository) statuses(ctx context.Context, date, nameExpr string, names []string) ([]StatusRow, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := []any{date}
	placeholders := make([]string, 0, len(names))
	for _, n := range names {
		args = append(args, n)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := fmt.Sprintf(`
		SELECT name, cash, online, suspend
		FROM student_management.student
		WHERE DATE(date) = $1
		  AND %s IN (%s)
	`, nameExpr, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StatusRow
	for rows.Next() {
		var (
			row                StatusRow
			name               sql.NullString
			cash, online, susp sql.NullBool
		)
		if err := rows.Scan(&name, &cash, &online, &susp); err != nil {
			return nil, err
		}
		row.Name = name.String
		row.Cash = cash.Bool
		row.Online = online.Bool
		row.Suspend = susp.Bool
		res = append(res, row)
	}
	return res, rows.Err()
}

// CollectionCounts returns how many status rows on the date have online and
// cash set.
func (r *Repository) CollectionCounts(ctx context.Context, date string) (online, cash int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM student_management.student
		WHERE DATE(date) = $1 AND online = TRUE
	`, date).Scan(&online)
	if err != nil {
		return 0, 0, err
	}
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM student_management.student
		WHERE DATE(date) = $1 AND cash = TRUE
	`, date).Scan(&cash)
	if err != nil {
		return 0, 0, err
	}
	return online, cash, nil
}

// UpsertStatus writes the three flags for (date, name) in one transaction:
// update the existing row when present, insert otherwise. The exact-name
// lookup here deliberately differs from the resolver's normalized join.
func (r *Repository) UpsertStatus(ctx context.Context, date, name string, cash, online, suspend bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT name FROM student_management.student
		WHERE DATE(date) = $1 AND name = $2
	`, date, name).Scan(&existing)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE student_management.student
			SET cash = $1, online = $2, suspend = $3
			WHERE DATE(date) = $4 AND name = $5
		`, cash, online, suspend, date, name)
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO student_management.student (name, cash, online, suspend, date)
			VALUES ($1, $2, $3, $4, $5)
		`, name, cash, online, suspend, date)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func scanRefs(rows *sql.Rows) ([]StudentRef, error) {
	var res []StudentRef
	for rows.Next() {
		var (
			ref  StudentRef
			name sql.NullString
		)
		if err := rows.Scan(&ref.ID, &name); err != nil {
			return nil, err
		}
		ref.Name = name.String
		res = append(res, ref)
	}
	return res, rows.Err()
}
