package enroll

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
	"time"

	"faceattend/internal/domain"
)

type fakeStore struct {
	students    map[string]Student // keyed by institution id
	descriptors map[string][]Descriptor
	nextDescID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		students:    map[string]Student{},
		descriptors: map[string][]Descriptor{},
	}
}

func (f *fakeStore) UpsertStudent(_ context.Context, st Student) (string, error) {
	if existing, ok := f.students[st.StudentID]; ok {
		existing.FullName = st.FullName
		existing.ClassName = st.ClassName
		f.students[st.StudentID] = existing
		return existing.ID, nil
	}
	f.students[st.StudentID] = st
	return st.ID, nil
}

func (f *fakeStore) GetByStudentID(_ context.Context, studentID string) (Student, error) {
	st, ok := f.students[studentID]
	if !ok {
		return Student{}, domain.E(domain.KindNotFound, "student not found")
	}
	return st, nil
}

func (f *fakeStore) ListStudents(context.Context) ([]Student, error) {
	out := make([]Student, 0, len(f.students))
	for _, st := range f.students {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeStore) CountStudents(context.Context) (int, error) {
	return len(f.students), nil
}

func (f *fakeStore) CountDescriptors(_ context.Context, internalID string) (int, error) {
	return len(f.descriptors[internalID]), nil
}

func (f *fakeStore) InsertDescriptor(_ context.Context, internalID string, vector []float32, capturedAt time.Time) (int64, error) {
	f.nextDescID++
	f.descriptors[internalID] = append(f.descriptors[internalID], Descriptor{
		ID:         f.nextDescID,
		StudentID:  internalID,
		Vector:     vector,
		CapturedAt: capturedAt,
	})
	return f.nextDescID, nil
}

func (f *fakeStore) ListDescriptors(_ context.Context, internalID string) ([]Descriptor, error) {
	return f.descriptors[internalID], nil
}

type countingDescriber struct {
	calls int
}

func (d *countingDescriber) Describe(context.Context, image.Image) ([]float32, error) {
	d.calls++
	return []float32{float32(d.calls), 0.5, 0.25}, nil
}

func dataURLs(t *testing.T, n int) []string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	out := make([]string, n)
	for i := range out {
		out[i] = url
	}
	return out
}

func TestEnrollStoresOneDescriptorPerImage(t *testing.T) {
	for _, n := range []int{1, 3, 6} {
		svc := NewService(newFakeStore(), &countingDescriber{})
		res, err := svc.Enroll(context.Background(), Request{
			StudentID:  "STU-001",
			FullName:   "Ada Lovelace",
			ClassName:  "10-A",
			FaceImages: dataURLs(t, n),
		})
		if err != nil {
			t.Fatalf("Enroll(%d images) error: %v", n, err)
		}
		if res.DescriptorCount != n {
			t.Errorf("DescriptorCount = %d, want %d", res.DescriptorCount, n)
		}
		descs, err := svc.ListDescriptors(context.Background(), "STU-001")
		if err != nil {
			t.Fatalf("ListDescriptors() error: %v", err)
		}
		if len(descs) != n {
			t.Errorf("stored %d descriptors, want %d", len(descs), n)
		}
	}
}

func TestEnrollValidation(t *testing.T) {
	svc := NewService(newFakeStore(), &countingDescriber{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"blank studentId", Request{StudentID: "  ", FullName: "Ada", ClassName: "10-A", FaceImages: dataURLs(t, 1)}},
		{"blank fullName", Request{StudentID: "STU-001", FullName: "", ClassName: "10-A", FaceImages: dataURLs(t, 1)}},
		{"blank className", Request{StudentID: "STU-001", FullName: "Ada", ClassName: " ", FaceImages: dataURLs(t, 1)}},
		{"no images", Request{StudentID: "STU-001", FullName: "Ada", ClassName: "10-A"}},
		{"too many images", Request{StudentID: "STU-001", FullName: "Ada", ClassName: "10-A", FaceImages: dataURLs(t, 11)}},
		{"malformed image", Request{StudentID: "STU-001", FullName: "Ada", ClassName: "10-A", FaceImages: []string{"nonsense"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Enroll(ctx, tt.req)
			if !domain.Is(err, domain.KindValidation) {
				t.Errorf("Enroll() error = %v, want validation error", err)
			}
		})
	}
}

func TestEnrollAdditiveUpToCap(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &countingDescriber{})
	ctx := context.Background()

	req := func(n int) Request {
		return Request{StudentID: "STU-001", FullName: "Ada", ClassName: "10-A", FaceImages: dataURLs(t, n)}
	}

	if _, err := svc.Enroll(ctx, req(6)); err != nil {
		t.Fatalf("first Enroll() error: %v", err)
	}
	res, err := svc.Enroll(ctx, req(4))
	if err != nil {
		t.Fatalf("second Enroll() error: %v", err)
	}
	if res.DescriptorCount != MaxDescriptors {
		t.Errorf("DescriptorCount = %d, want %d", res.DescriptorCount, MaxDescriptors)
	}

	// The 11th descriptor must be rejected and the count left at the cap.
	_, err = svc.Enroll(ctx, req(1))
	if !domain.Is(err, domain.KindCapacity) {
		t.Fatalf("over-cap Enroll() error = %v, want capacity error", err)
	}
	descs, _ := svc.ListDescriptors(ctx, "STU-001")
	if len(descs) != MaxDescriptors {
		t.Errorf("descriptor count after rejection = %d, want %d", len(descs), MaxDescriptors)
	}
}

func TestEnrollNoFaceDetected(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, describerFunc(func() ([]float32, error) {
		return nil, domain.E(domain.KindNoMatch, "no face detected in image")
	}))

	_, err := svc.Enroll(context.Background(), Request{
		StudentID:  "STU-001",
		FullName:   "Ada",
		ClassName:  "10-A",
		FaceImages: dataURLs(t, 1),
	})
	if !domain.Is(err, domain.KindValidation) {
		t.Fatalf("Enroll() error = %v, want validation error", err)
	}
	if n, _ := store.CountStudents(context.Background()); n != 0 {
		t.Errorf("student stored despite rejected enrollment")
	}
}

type describerFunc func() ([]float32, error)

func (f describerFunc) Describe(context.Context, image.Image) ([]float32, error) {
	return f()
}

func TestFindStudent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &countingDescriber{})
	ctx := context.Background()

	if _, err := svc.FindStudent(ctx, "STU-404"); !domain.Is(err, domain.KindNotFound) {
		t.Errorf("FindStudent() error = %v, want not-found", err)
	}

	if _, err := svc.Enroll(ctx, Request{
		StudentID: "STU-001", FullName: "Ada", ClassName: "10-A", FaceImages: dataURLs(t, 1),
	}); err != nil {
		t.Fatalf("Enroll() error: %v", err)
	}
	st, err := svc.FindStudent(ctx, "STU-001")
	if err != nil {
		t.Fatalf("FindStudent() error: %v", err)
	}
	if st.FullName != "Ada" || st.ClassName != "10-A" {
		t.Errorf("unexpected student: %+v", st)
	}
}

func TestEnrollKeepsEmail(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &countingDescriber{})

	res, err := svc.Enroll(context.Background(), Request{
		StudentID:  "STU-001",
		FullName:   "Ada",
		ClassName:  "10-A",
		Email:      "ada@school.example",
		FaceImages: dataURLs(t, 1),
	})
	if err != nil {
		t.Fatalf("Enroll() error: %v", err)
	}
	if res.Student.Email == nil || *res.Student.Email != "ada@school.example" {
		t.Errorf("email = %v", res.Student.Email)
	}
	if res.EnrollmentID == "" {
		t.Error("missing enrollmentId")
	}
}
