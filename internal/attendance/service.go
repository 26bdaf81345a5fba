package attendance

import (
	"context"
	"encoding/json"
	"image"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"faceattend/internal/domain"
	"faceattend/internal/enroll"
	"faceattend/internal/metrics"
	"faceattend/internal/queue"
)

// DefaultThreshold is the acceptance confidence on the [0,1] scale.
const DefaultThreshold = 0.6

// Limits for log listing.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 100
)

// RecordStore is the persistence surface for attendance rows.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) error
	ListLogs(ctx context.Context, f LogFilter) ([]Log, int, error)
	CountForDay(ctx context.Context, day time.Time) (int, error)
}

// Gallery exposes the enrolled descriptors and their owners.
type Gallery interface {
	ListAllDescriptors(ctx context.Context) ([]enroll.Descriptor, error)
	GetStudentByID(ctx context.Context, internalID string) (enroll.Student, error)
	GetByStudentID(ctx context.Context, studentID string) (enroll.Student, error)
}

// Describer computes an embedding for a decoded frame.
type Describer interface {
	Describe(ctx context.Context, img image.Image) ([]float32, error)
}

// Match is a successful identification.
type Match struct {
	Student      enroll.Student `json:"student"`
	Confidence   float64        `json:"confidence"`
	DescriptorID int64          `json:"-"`
}

// Outcome is the result of a face-driven attendance attempt. An
// unrecognized face is a normal negative result, not an error.
type Outcome struct {
	Recognized bool            `json:"recognized"`
	Record     *Record         `json:"record,omitempty"`
	Student    *enroll.Student `json:"student,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
}

// CheckinEvent is published to the queue for the stats worker.
type CheckinEvent struct {
	StudentID string `json:"studentId"`
	ClassName string `json:"className"`
	Day       string `json:"day"`
}

// Service is the attendance matching pipeline.
type Service struct {
	records   RecordStore
	gallery   Gallery
	describer Describer
	publisher queue.Queue
	threshold float64
	nowFunc   func() time.Time
}

// NewService creates the pipeline. publisher may be nil; stats events are
// then skipped.
func NewService(records RecordStore, gallery Gallery, describer Describer, publisher queue.Queue, threshold float64) *Service {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Service{
		records:   records,
		gallery:   gallery,
		describer: describer,
		publisher: publisher,
		threshold: threshold,
		nowFunc:   time.Now,
	}
}

// MatchFace embeds the frame and scans every stored descriptor for the
// best-scoring student above the threshold. Ties resolve to the lowest
// descriptor id, which is the scan order.
func (s *Service) MatchFace(ctx context.Context, img image.Image) (Match, error) {
	probe, err := s.describer.Describe(ctx, img)
	if err != nil {
		return Match{}, err
	}

	descriptors, err := s.gallery.ListAllDescriptors(ctx)
	if err != nil {
		return Match{}, err
	}

	best := Match{Confidence: -1}
	var bestOwner string
	for _, d := range descriptors {
		score, ok := confidence(probe, d.Vector)
		if !ok {
			continue
		}
		if score > best.Confidence {
			best.Confidence = score
			best.DescriptorID = d.ID
			bestOwner = d.StudentID
		}
	}

	if bestOwner == "" || best.Confidence < s.threshold {
		return Match{}, domain.E(domain.KindNoMatch, "no enrolled face matched")
	}

	student, err := s.gallery.GetStudentByID(ctx, bestOwner)
	if err != nil {
		return Match{}, err
	}
	best.Student = student
	return best, nil
}

// MarkAttendance records a check-in for the student identified by the
// institution-assigned id. A second mark on the same UTC day fails with
// the duplicate error, enforced by the storage constraint.
func (s *Service) MarkAttendance(ctx context.Context, studentID, className string, confidenceScore float64) (Record, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return Record{}, domain.E(domain.KindValidation, "studentId is required")
	}
	if confidenceScore < 0 || confidenceScore > 1 {
		return Record{}, domain.E(domain.KindValidation, "confidence score must be within [0,1]")
	}

	student, err := s.gallery.GetByStudentID(ctx, studentID)
	if err != nil {
		return Record{}, err
	}
	return s.record(ctx, student, className, confidenceScore)
}

// MarkAttendanceByFace composes MatchFace and the attendance write. An
// unmatched face yields Outcome{Recognized: false} so the caller can fall
// back to manual entry.
func (s *Service) MarkAttendanceByFace(ctx context.Context, img image.Image, className string) (Outcome, error) {
	match, err := s.MatchFace(ctx, img)
	if err != nil {
		if domain.Is(err, domain.KindNoMatch) {
			metrics.MatchAttempts.WithLabelValues("unmatched").Inc()
			return Outcome{Recognized: false}, nil
		}
		metrics.MatchAttempts.WithLabelValues("error").Inc()
		return Outcome{}, err
	}

	rec, err := s.record(ctx, match.Student, className, match.Confidence)
	if err != nil {
		if domain.Is(err, domain.KindDuplicate) {
			metrics.MatchAttempts.WithLabelValues("duplicate").Inc()
		} else {
			metrics.MatchAttempts.WithLabelValues("error").Inc()
		}
		return Outcome{}, err
	}
	metrics.MatchAttempts.WithLabelValues("matched").Inc()
	return Outcome{
		Recognized: true,
		Record:     &rec,
		Student:    &match.Student,
		Confidence: match.Confidence,
	}, nil
}

func (s *Service) record(ctx context.Context, student enroll.Student, className string, confidenceScore float64) (Record, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		className = student.ClassName
	}

	rec := Record{
		ID:          uuid.NewString(),
		StudentRef:  student.ID,
		ClassName:   className,
		CheckInTime: s.nowFunc().UTC(),
		Confidence:  confidenceScore,
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		return Record{}, err
	}
	metrics.AttendanceMarked.Inc()
	s.publishCheckin(ctx, student.StudentID, className, rec.CheckInTime)
	return rec, nil
}

// publishCheckin hands the event to the stats worker, fire and forget.
func (s *Service) publishCheckin(ctx context.Context, studentID, className string, when time.Time) {
	if s.publisher == nil {
		return
	}
	body, _ := json.Marshal(CheckinEvent{
		StudentID: studentID,
		ClassName: className,
		Day:       when.UTC().Format("2006-01-02"),
	})
	if err := s.publisher.Publish(ctx, queue.Message{Type: queue.TypeCheckin, Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// CountForDay returns the stored record count for the UTC day.
func (s *Service) CountForDay(ctx context.Context, day time.Time) (int, error) {
	return s.records.CountForDay(ctx, day)
}

// ListLogs returns attendance records ordered by check-in time descending.
func (s *Service) ListLogs(ctx context.Context, f LogFilter) ([]Log, int, int, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLogLimit
	}
	if f.Limit > MaxLogLimit {
		return nil, 0, 0, domain.Ef(domain.KindValidation, "limit must be at most %d", MaxLogLimit)
	}
	logs, total, err := s.records.ListLogs(ctx, f)
	if err != nil {
		return nil, 0, 0, err
	}
	return logs, total, f.Limit, nil
}

// confidence maps cosine similarity onto [0,1]. Vectors of mismatched
// length or zero norm are not candidates.
func confidence(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (1 + cos) / 2, true
}
