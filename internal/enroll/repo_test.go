package enroll

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"faceattend/internal/domain"
)

func TestRepositoryUpsertStudent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	st := Student{
		ID:        "internal-1",
		StudentID: "STU-001",
		FullName:  "Ada Lovelace",
		ClassName: "10-A",
		CreatedAt: time.Now().UTC(),
	}

	// Re-enrollment resolves to the already-stored internal id.
	mock.ExpectQuery("INSERT INTO students").
		WithArgs(st.ID, st.StudentID, st.FullName, nil, st.ClassName, st.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-internal"))

	id, err := repo.UpsertStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("UpsertStudent() error: %v", err)
	}
	if id != "existing-internal" {
		t.Errorf("id = %q, want existing-internal", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestRepositoryGetByStudentIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	mock.ExpectQuery("SELECT id, student_id, full_name, email, class_name, created_at").
		WithArgs("STU-404").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByStudentID(context.Background(), "STU-404")
	if !domain.Is(err, domain.KindNotFound) {
		t.Fatalf("GetByStudentID() error = %v, want not-found", err)
	}
}

func TestRepositoryInsertDescriptor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	vector := []float32{0.1, 0.2, 0.3}
	encoded, _ := json.Marshal(vector)
	capturedAt := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO face_descriptors").
		WithArgs("internal-1", encoded, capturedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.InsertDescriptor(context.Background(), "internal-1", vector, capturedAt)
	if err != nil {
		t.Fatalf("InsertDescriptor() error: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
}

func TestRepositoryListAllDescriptorsOrderedByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "vector", "captured_at"}).
		AddRow(int64(1), "internal-1", []byte(`[0.1,0.2]`), now).
		AddRow(int64(2), "internal-2", []byte(`[0.3,0.4]`), now)

	mock.ExpectQuery("SELECT id, student_id, vector, captured_at\\s+FROM face_descriptors\\s+ORDER BY id").
		WillReturnRows(rows)

	descs, err := repo.ListAllDescriptors(context.Background())
	if err != nil {
		t.Fatalf("ListAllDescriptors() error: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("len = %d, want 2", len(descs))
	}
	if descs[0].ID != 1 || descs[1].ID != 2 {
		t.Errorf("descriptors out of order: %+v", descs)
	}
	if descs[0].Vector[1] != 0.2 {
		t.Errorf("vector did not decode: %v", descs[0].Vector)
	}
}

func TestRepositoryListStudents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "full_name", "email", "class_name", "created_at"}).
		AddRow("int-1", "STU-001", "Ada Lovelace", nil, "10-A", now).
		AddRow("int-2", "STU-002", "Bob Noyce", "bob@school.example", "10-B", now)

	mock.ExpectQuery("SELECT id, student_id, full_name, email, class_name, created_at\\s+FROM students\\s+ORDER BY full_name").
		WillReturnRows(rows)

	students, err := repo.ListStudents(context.Background())
	if err != nil {
		t.Fatalf("ListStudents() error: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("len = %d, want 2", len(students))
	}
	if students[0].Email != nil {
		t.Errorf("email = %v, want nil", students[0].Email)
	}
	if students[1].Email == nil || *students[1].Email != "bob@school.example" {
		t.Errorf("email = %v", students[1].Email)
	}
}

func TestRepositoryDeleteStudent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	mock.ExpectExec("DELETE FROM students").
		WithArgs("STU-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM students").
		WithArgs("STU-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteStudent(context.Background(), "STU-001"); err != nil {
		t.Fatalf("DeleteStudent() error: %v", err)
	}
	err = repo.DeleteStudent(context.Background(), "STU-404")
	if !domain.Is(err, domain.KindNotFound) {
		t.Fatalf("DeleteStudent() error = %v, want not-found", err)
	}
}

func TestRepositoryCountDescriptors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	repo := NewRepository(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM face_descriptors").
		WithArgs("internal-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountDescriptors(context.Background(), "internal-1")
	if err != nil {
		t.Fatalf("CountDescriptors() error: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}
}
