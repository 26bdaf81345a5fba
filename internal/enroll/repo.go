package enroll

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"faceattend/internal/domain"
)

// Student is an enrolled student.
type Student struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	FullName  string    `json:"fullName"`
	Email     *string   `json:"email,omitempty"`
	ClassName string    `json:"className"`
	CreatedAt time.Time `json:"createdAt"`
}

// Descriptor is one stored face embedding for a student. Immutable once
// written; removed only when the owning student is deleted.
type Descriptor struct {
	ID         int64     `json:"id"`
	StudentID  string    `json:"studentId"`
	Vector     []float32 `json:"vector"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Repository persists students and their face descriptors in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertStudent creates the student or refreshes its mutable fields on
// re-enrollment, returning the internal id either way.
func (r *Repository) UpsertStudent(ctx context.Context, st Student) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, student_id, full_name, email, class_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id) DO UPDATE SET
			full_name  = EXCLUDED.full_name,
			email      = COALESCE(EXCLUDED.email, students.email),
			class_name = EXCLUDED.class_name
		RETURNING id
	`, st.ID, st.StudentID, st.FullName, st.Email, st.ClassName, st.CreatedAt)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", domain.Wrap(domain.KindInternal, "upsert student", err)
	}
	return id, nil
}

// GetByStudentID returns the student for an institution-assigned id.
func (r *Repository) GetByStudentID(ctx context.Context, studentID string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, full_name, email, class_name, created_at
		FROM students WHERE student_id = $1
	`, studentID)
	var st Student
	err := row.Scan(&st.ID, &st.StudentID, &st.FullName, &st.Email, &st.ClassName, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, domain.E(domain.KindNotFound, "student not found")
	}
	if err != nil {
		return Student{}, domain.Wrap(domain.KindInternal, "load student", err)
	}
	return st, nil
}

// GetStudentByID returns the student for an internal id.
func (r *Repository) GetStudentByID(ctx context.Context, internalID string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, full_name, email, class_name, created_at
		FROM students WHERE id = $1
	`, internalID)
	var st Student
	err := row.Scan(&st.ID, &st.StudentID, &st.FullName, &st.Email, &st.ClassName, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, domain.E(domain.KindNotFound, "student not found")
	}
	if err != nil {
		return Student{}, domain.Wrap(domain.KindInternal, "load student", err)
	}
	return st, nil
}

// ListStudents returns every enrolled student ordered by name.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, full_name, email, class_name, created_at
		FROM students
		ORDER BY full_name, student_id
	`)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list students", err)
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.StudentID, &st.FullName, &st.Email, &st.ClassName, &st.CreatedAt); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan student", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "scan students", err)
	}
	return out, nil
}

// CountStudents returns the number of enrolled students.
func (r *Repository) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, domain.Wrap(domain.KindInternal, "count students", err)
	}
	return n, nil
}

// DeleteStudent removes a student; descriptors cascade via the FK.
func (r *Repository) DeleteStudent(ctx context.Context, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = $1`, studentID)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "delete student", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.E(domain.KindNotFound, "student not found")
	}
	return nil
}

// CountDescriptors returns how many descriptors a student has.
func (r *Repository) CountDescriptors(ctx context.Context, internalID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM face_descriptors WHERE student_id = $1`, internalID).Scan(&n)
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, "count descriptors", err)
	}
	return n, nil
}

// InsertDescriptor stores one embedding for a student.
func (r *Repository) InsertDescriptor(ctx context.Context, internalID string, vector []float32, capturedAt time.Time) (int64, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, "encode descriptor", err)
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO face_descriptors (student_id, vector, captured_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, internalID, data, capturedAt).Scan(&id)
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, "insert descriptor", err)
	}
	return id, nil
}

// ListDescriptors returns a student's descriptors ordered by id.
func (r *Repository) ListDescriptors(ctx context.Context, internalID string) ([]Descriptor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, vector, captured_at
		FROM face_descriptors WHERE student_id = $1
		ORDER BY id
	`, internalID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list descriptors", err)
	}
	return scanDescriptors(rows)
}

// ListAllDescriptors returns every stored descriptor ordered by id, the
// scan order the matcher depends on for deterministic tie-breaks.
func (r *Repository) ListAllDescriptors(ctx context.Context) ([]Descriptor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, vector, captured_at
		FROM face_descriptors
		ORDER BY id
	`)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list descriptors", err)
	}
	return scanDescriptors(rows)
}

func scanDescriptors(rows *sql.Rows) ([]Descriptor, error) {
	defer rows.Close()
	var out []Descriptor
	for rows.Next() {
		var d Descriptor
		var data []byte
		if err := rows.Scan(&d.ID, &d.StudentID, &data, &d.CapturedAt); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan descriptor", err)
		}
		if err := json.Unmarshal(data, &d.Vector); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "decode descriptor", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "scan descriptors", err)
	}
	return out, nil
}
