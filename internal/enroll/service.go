package enroll

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"

	"faceattend/internal/domain"
	"faceattend/internal/face"
	"faceattend/internal/metrics"
)

// MaxDescriptors caps stored embeddings per student. Re-enrollment is
// additive up to the cap.
const MaxDescriptors = 10

// Store is the persistence surface the service needs.
type Store interface {
	UpsertStudent(ctx context.Context, st Student) (string, error)
	GetByStudentID(ctx context.Context, studentID string) (Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	CountStudents(ctx context.Context) (int, error)
	CountDescriptors(ctx context.Context, internalID string) (int, error)
	InsertDescriptor(ctx context.Context, internalID string, vector []float32, capturedAt time.Time) (int64, error)
	ListDescriptors(ctx context.Context, internalID string) ([]Descriptor, error)
}

// Describer computes an embedding for a decoded frame.
type Describer interface {
	Describe(ctx context.Context, img image.Image) ([]float32, error)
}

// Request carries one enrollment submission.
type Request struct {
	StudentID  string
	FullName   string
	ClassName  string
	Email      string
	FaceImages []string // data URLs
}

// Result is returned on success.
type Result struct {
	EnrollmentID    string  `json:"enrollmentId"`
	Student         Student `json:"student"`
	DescriptorCount int     `json:"descriptorCount"`
}

// Service implements student enrollment over a store and an embedder.
type Service struct {
	store     Store
	describer Describer
	nowFunc   func() time.Time
}

// NewService creates an enrollment service.
func NewService(store Store, describer Describer) *Service {
	return &Service{store: store, describer: describer, nowFunc: time.Now}
}

// Enroll validates the submission, embeds every face image, and stores the
// student with its descriptors. Re-enrolling an existing studentId appends
// descriptors; going past the cap fails with a capacity error before any
// descriptor from the batch is written.
func (s *Service) Enroll(ctx context.Context, req Request) (Result, error) {
	studentID := strings.TrimSpace(req.StudentID)
	fullName := strings.TrimSpace(req.FullName)
	className := strings.TrimSpace(req.ClassName)
	if studentID == "" || fullName == "" || className == "" {
		return Result{}, domain.E(domain.KindValidation, "studentId, fullName and className are required")
	}
	if len(req.FaceImages) == 0 {
		return Result{}, domain.E(domain.KindValidation, "at least one face image is required")
	}
	if len(req.FaceImages) > MaxDescriptors {
		return Result{}, domain.Ef(domain.KindValidation, "at most %d face images per enrollment", MaxDescriptors)
	}

	// Validate every frame before touching the store.
	frames := make([]image.Image, 0, len(req.FaceImages))
	for _, dataURL := range req.FaceImages {
		img, err := face.DecodeDataURL(dataURL)
		if err != nil {
			return Result{}, err
		}
		frames = append(frames, img)
	}

	vectors := make([][]float32, 0, len(frames))
	for _, img := range frames {
		vec, err := s.describer.Describe(ctx, img)
		if err != nil {
			if domain.Is(err, domain.KindNoMatch) {
				return Result{}, domain.E(domain.KindValidation, "no face detected in one of the images")
			}
			return Result{}, err
		}
		vectors = append(vectors, vec)
	}

	now := s.nowFunc().UTC()
	st := Student{
		ID:        uuid.NewString(),
		StudentID: studentID,
		FullName:  fullName,
		ClassName: className,
		CreatedAt: now,
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		st.Email = &email
	}

	internalID, err := s.store.UpsertStudent(ctx, st)
	if err != nil {
		return Result{}, err
	}

	existing, err := s.store.CountDescriptors(ctx, internalID)
	if err != nil {
		return Result{}, err
	}
	if existing+len(vectors) > MaxDescriptors {
		return Result{}, domain.Ef(domain.KindCapacity,
			"student already has %d of %d descriptors", existing, MaxDescriptors)
	}

	for _, vec := range vectors {
		if _, err := s.store.InsertDescriptor(ctx, internalID, vec, now); err != nil {
			return Result{}, err
		}
		metrics.Enrollments.Inc()
	}

	stored, err := s.store.GetByStudentID(ctx, studentID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		EnrollmentID:    uuid.NewString(),
		Student:         stored,
		DescriptorCount: existing + len(vectors),
	}, nil
}

// FindStudent returns the student for an institution-assigned id.
func (s *Service) FindStudent(ctx context.Context, studentID string) (Student, error) {
	if strings.TrimSpace(studentID) == "" {
		return Student{}, domain.E(domain.KindValidation, "studentId is required")
	}
	return s.store.GetByStudentID(ctx, studentID)
}

// ListStudents returns the enrolled roster.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// ListDescriptors returns the student's descriptors in insertion order.
func (s *Service) ListDescriptors(ctx context.Context, studentID string) ([]Descriptor, error) {
	st, err := s.store.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.store.ListDescriptors(ctx, st.ID)
}
