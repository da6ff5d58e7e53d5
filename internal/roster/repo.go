package roster

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when an insert trips a unique constraint.
var ErrDuplicate = errors.New("duplicate student")

// ErrGradeRequired is returned when the schema rejects a NULL grade. The
// deployed schema sometimes carries NOT NULL on grade; surface it distinctly
// so the handler can report a schema problem instead of a generic failure.
var ErrGradeRequired = errors.New("grade column does not allow null")

const studentColumns = `id, name, grade, admission_date, mobile_no, address, student_photo, id_proof`

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns every student ordered by name.
func (r *Repository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM student_management.students
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// Search returns students whose name contains term, case-insensitively,
// ordered by name. The term must be non-empty; the handler enforces that.
func (r *Repository) Search(ctx context.Context, term string) ([]Student, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM student_management.students
		WHERE LOWER(name) LIKE $1
		ORDER BY name ASC
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// AdmittedOn returns students admitted on the given YYYY-MM-DD date.
func (r *Repository) AdmittedOn(ctx context.Context, date string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM student_management.students
		WHERE DATE(admission_date) = $1
		ORDER BY name ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// Get returns a single student by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id int64) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+`
		FROM student_management.students
		WHERE id = $1
	`, id)
	var s Student
	if err := scanStudent(row, &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// NewStudent carries the fields of an enrollment request. Photo and IDProof
// are optional and held in memory only for the duration of the request.
type NewStudent struct {
	Name          string
	Grade         *string
	AdmissionDate string
	MobileNo      string
	Address       string
	Photo         []byte
	IDProof       []byte
}

// Create inserts a student and returns the stored record. A unique-constraint
// violation maps to ErrDuplicate, a NULL rejection on grade to
// ErrGradeRequired.
func (r *Repository) Create(ctx context.Context, ns NewStudent) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO student_management.students
		  (name, grade, admission_date, mobile_no, address, student_photo, id_proof)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+studentColumns+`
	`, ns.Name, ns.Grade, ns.AdmissionDate, ns.MobileNo, ns.Address, ns.Photo, ns.IDProof)
	var s Student
	if err := scanStudent(row, &s); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505":
				return Student{}, ErrDuplicate
			case pgErr.Code == "23502" && pgErr.ColumnName == "grade":
				return Student{}, ErrGradeRequired
			}
		}
		return Student{}, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner, s *Student) error {
	var (
		name, mobile, address sql.NullString
		admitted              sql.NullTime
	)
	if err := row.Scan(&s.ID, &name, &s.Grade, &admitted, &mobile, &address, &s.Photo, &s.IDProof); err != nil {
		return err
	}
	s.Name = name.String
	s.MobileNo = mobile.String
	s.Address = address.String
	if admitted.Valid {
		t := admitted.Time
		s.AdmissionDate = &t
	}
	return nil
}

func scanStudents(rows *sql.Rows) ([]Student, error) {
	var res []Student
	for rows.Next() {
		var s Student
		if err := scanStudent(rows, &s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
