package enrollment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/enrollman/internal/metrics"
	"github.com/hitoshi/enrollman/internal/model"
	"github.com/hitoshi/enrollman/internal/repository"
)

// --- モック定義 ---

type mockStudentRepo struct {
	createFn   func(ctx context.Context, student *model.Student) error
	findByIDFn func(ctx context.Context, id string) (*model.Student, error)
	listFn     func(ctx context.Context) ([]*model.Student, error)
}

func (m *mockStudentRepo) Create(ctx context.Context, student *model.Student) error {
	if m.createFn != nil {
		return m.createFn(ctx, student)
	}
	return nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStudentRepo) List(ctx context.Context) ([]*model.Student, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockMirror struct {
	mu       sync.Mutex
	appended []*model.Student
	err      error
}

func (m *mockMirror) AppendStudent(ctx context.Context, student *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, student)
	return m.err
}

func (m *mockMirror) appendedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appended)
}

type mockCollector struct {
	mu            sync.Mutex
	registrations []string
	mirrorSuccess int
	mirrorFail    []string
	latencies     int
}

func (m *mockCollector) RecordRegistration(grade string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = append(m.registrations, grade)
}

func (m *mockCollector) RecordMirrorSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrorSuccess++
}

func (m *mockCollector) RecordMirrorFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrorFail = append(m.mirrorFail, reason)
}

func (m *mockCollector) RecordMirrorLatency(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *mockCollector) RecordHTTPStatus(statusCode int) {}

// --- compile-time interface checks ---
var (
	_ repository.StudentRepository = (*mockStudentRepo)(nil)
	_ MirrorClient                 = (*mockMirror)(nil)
	_ metrics.MetricsCollector     = (*mockCollector)(nil)
)

// --- テスト ---

func TestSubmit_ValidInput_PersistsAndReturnsStudent(t *testing.T) {
	var created *model.Student
	repo := &mockStudentRepo{
		createFn: func(ctx context.Context, student *model.Student) error {
			created = student
			return nil
		},
	}
	collector := &mockCollector{}
	svc := NewService(repo, nil, nil, collector, ServiceConfig{})

	before := time.Now().UTC()
	student, err := svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if student.ID == "" {
		t.Error("expected non-empty student ID")
	}
	if created == nil || created.ID != student.ID {
		t.Error("expected student to be persisted")
	}
	if student.Grade != model.GradeFirst {
		t.Errorf("Grade = %q, want %q", student.Grade, model.GradeFirst)
	}
	if student.CreatedAt.Before(before) || student.CreatedAt.After(time.Now().UTC()) {
		t.Errorf("CreatedAt = %v is outside submission window", student.CreatedAt)
	}
	if len(collector.registrations) != 1 || collector.registrations[0] != "1" {
		t.Errorf("registrations = %v, want [1]", collector.registrations)
	}
}

func TestSubmit_ValidationFailure_DoesNotPersist(t *testing.T) {
	created := false
	repo := &mockStudentRepo{
		createFn: func(ctx context.Context, student *model.Student) error {
			created = true
			return nil
		},
	}
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	input := validInput()
	input.StudentPhone = "123"
	_, err := svc.Submit(context.Background(), input)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() error = %T, want *model.ValidationError", err)
	}
	if created {
		t.Error("検証失敗時に永続化が行われた")
	}
}

func TestSubmit_RepositoryFailure_ReturnsWrappedError(t *testing.T) {
	repoErr := errors.New("connection refused")
	repo := &mockStudentRepo{
		createFn: func(ctx context.Context, student *model.Student) error {
			return repoErr
		},
	}
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	_, err := svc.Submit(context.Background(), validInput())
	if !errors.Is(err, repoErr) {
		t.Fatalf("Submit() error = %v, want wrapped %v", err, repoErr)
	}
}

func TestSubmit_MirrorReceivesStudent(t *testing.T) {
	repo := &mockStudentRepo{}
	mirror := &mockMirror{}
	svc := NewService(repo, mirror, nil, nil, ServiceConfig{MirrorTimeout: time.Second})

	student, err := svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	svc.Wait()

	if mirror.appendedCount() != 1 {
		t.Fatalf("appended = %d, want 1", mirror.appendedCount())
	}
	if mirror.appended[0].ID != student.ID {
		t.Errorf("mirror received ID %q, want %q", mirror.appended[0].ID, student.ID)
	}
}

func TestSubmit_MirrorFailure_DoesNotAffectSubmission(t *testing.T) {
	repo := &mockStudentRepo{}
	mirror := &mockMirror{err: errors.New("sheets unavailable")}
	collector := &mockCollector{}
	svc := NewService(repo, mirror, nil, collector, ServiceConfig{MirrorTimeout: time.Second})

	student, err := svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit() error = %v, want success despite mirror failure", err)
	}
	if student == nil {
		t.Fatal("expected student")
	}

	svc.Wait()

	collector.mu.Lock()
	defer collector.mu.Unlock()
	if len(collector.mirrorFail) != 1 {
		t.Fatalf("mirrorFail = %v, want 1 entry", collector.mirrorFail)
	}
	if collector.mirrorFail[0] != "append_failed" {
		t.Errorf("reason = %q, want append_failed", collector.mirrorFail[0])
	}
	if collector.mirrorSuccess != 0 {
		t.Errorf("mirrorSuccess = %d, want 0", collector.mirrorSuccess)
	}
}

func TestSubmit_MirrorSuccess_RecordsMetrics(t *testing.T) {
	repo := &mockStudentRepo{}
	mirror := &mockMirror{}
	collector := &mockCollector{}
	svc := NewService(repo, mirror, nil, collector, ServiceConfig{MirrorTimeout: time.Second})

	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	svc.Wait()

	collector.mu.Lock()
	defer collector.mu.Unlock()
	if collector.mirrorSuccess != 1 {
		t.Errorf("mirrorSuccess = %d, want 1", collector.mirrorSuccess)
	}
	if collector.latencies != 1 {
		t.Errorf("latencies = %d, want 1", collector.latencies)
	}
}

func TestSubmit_NilMirror_NoDispatch(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	// mirrorなしではWaitは即座に返る
	svc.Wait()
}

func TestListNewestFirst_OrdersByCreatedAtDescending(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStudentRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		student := &model.Student{
			ID:           id,
			Grade:        model.GradeFirst,
			StudentName:  "أحمد محمد",
			StudentPhone: "01012345678",
			ParentPhone:  "01123456789",
			SchoolName:   "مدرسة النصر",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, student); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	students, err := svc.ListNewestFirst(ctx)
	if err != nil {
		t.Fatalf("ListNewestFirst() error = %v", err)
	}
	if len(students) != 3 {
		t.Fatalf("len = %d, want 3", len(students))
	}

	wantOrder := []string{"third", "second", "first"}
	for i, want := range wantOrder {
		if students[i].ID != want {
			t.Errorf("students[%d].ID = %q, want %q", i, students[i].ID, want)
		}
	}
}

func TestListNewestFirst_StableForEqualTimestamps(t *testing.T) {
	// 同時刻の申込は挿入順を保つ
	ctx := context.Background()
	repo := repository.NewMemoryStudentRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		student := &model.Student{
			ID:           id,
			Grade:        model.GradeSecond,
			StudentName:  "أحمد محمد",
			StudentPhone: "01012345678",
			ParentPhone:  "01123456789",
			SchoolName:   "مدرسة النصر",
			CreatedAt:    at,
		}
		if err := repo.Create(ctx, student); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	students, err := svc.ListNewestFirst(ctx)
	if err != nil {
		t.Fatalf("ListNewestFirst() error = %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if students[i].ID != want {
			t.Errorf("students[%d].ID = %q, want %q", i, students[i].ID, want)
		}
	}
}

func TestFindByID_NotFound_ReturnsNil(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	student, err := svc.FindByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if student != nil {
		t.Errorf("student = %v, want nil", student)
	}
}
