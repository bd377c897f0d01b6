// Package enrollment は生徒申込のドメインロジックを提供する。
//
// 申込の検証・永続化・スプレッドシートミラーのベストエフォート転送を担当する。
// ミラー転送の失敗は申込の成否に影響しない。
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/enrollman/internal/metrics"
	"github.com/hitoshi/enrollman/internal/model"
	"github.com/hitoshi/enrollman/internal/repository"
)

// MirrorClient は受理済み申込を外部スプレッドシートへ転送するインターフェース。
type MirrorClient interface {
	// AppendStudent は申込1件をスプレッドシートに追記する。
	AppendStudent(ctx context.Context, student *model.Student) error
}

// ServiceConfig はServiceの動作設定。
type ServiceConfig struct {
	// MirrorTimeout はミラー転送1件あたりのタイムアウト。
	MirrorTimeout time.Duration
}

// Service は生徒申込のサービス層。
// mirrorがnilの場合はミラー転送を行わない。
type Service struct {
	students  repository.StudentRepository
	mirror    MirrorClient
	sanitizer Sanitizer
	collector metrics.MetricsCollector
	config    ServiceConfig

	// ミラー転送goroutineの追跡。シャットダウン時にWaitで排出する。
	wg sync.WaitGroup
}

// NewService はServiceの新しいインスタンスを生成する。
// mirror・sanitizer・collectorはnilを許容する（機能無効化）。
func NewService(
	students repository.StudentRepository,
	mirror MirrorClient,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.MirrorTimeout <= 0 {
		config.MirrorTimeout = 10 * time.Second
	}
	return &Service{
		students:  students,
		mirror:    mirror,
		sanitizer: sanitizer,
		collector: collector,
		config:    config,
	}
}

// Submit は申込を検証し、受理して永続化する。
// 検証失敗時は*model.ValidationErrorを返し、一切の永続化を行わない。
// 永続化成功後、ミラー転送を非同期で開始してから即座に応答を返す。
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*model.Student, error) {
	if verr := validateSubmitInput(&input, s.sanitizer); verr != nil {
		return nil, verr
	}

	student := &model.Student{
		ID:           uuid.New().String(),
		Grade:        model.Grade(input.Grade),
		StudentName:  input.StudentName,
		StudentPhone: input.StudentPhone,
		ParentPhone:  input.ParentPhone,
		SchoolName:   input.SchoolName,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.students.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("申込の保存に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordRegistration(string(student.Grade))
	}

	slog.Info("申込を受理しました",
		"student_id", student.ID,
		"grade", string(student.Grade),
	)

	s.dispatchMirror(student)

	return student, nil
}

// dispatchMirror はミラー転送を追跡付きgoroutineで開始する。
// リクエストコンテキストには紐付けず、独立したタイムアウトで実行する。
func (s *Service) dispatchMirror(student *model.Student) {
	if s.mirror == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.MirrorTimeout)
		defer cancel()

		start := time.Now()
		err := s.mirror.AppendStudent(ctx, student)
		elapsed := time.Since(start)

		if s.collector != nil {
			s.collector.RecordMirrorLatency(elapsed)
		}

		if err != nil {
			reason := "append_failed"
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				reason = "timeout"
			}
			if s.collector != nil {
				s.collector.RecordMirrorFailure(reason)
			}
			// ミラー失敗は申込の成否に影響しない。ログとメトリクスのみ。
			slog.Error("スプレッドシートへのミラー転送に失敗しました",
				"student_id", student.ID,
				"reason", reason,
				"error", err,
			)
			return
		}

		if s.collector != nil {
			s.collector.RecordMirrorSuccess()
		}
		slog.Info("スプレッドシートへミラー転送しました",
			"student_id", student.ID,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}()
}

// FindByID はIDで申込を取得する。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("申込の取得に失敗しました: %w", err)
	}
	return student, nil
}

// ListNewestFirst は全申込を登録日時の降順で返す。
// 同時刻の申込同士は挿入順を保つ。
func (s *Service) ListNewestFirst(ctx context.Context) ([]*model.Student, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("申込一覧の取得に失敗しました: %w", err)
	}

	sort.SliceStable(students, func(i, j int) bool {
		return students[i].CreatedAt.After(students[j].CreatedAt)
	})
	return students, nil
}

// Wait は進行中のミラー転送goroutineが全て完了するまでブロックする。
// グレースフルシャットダウン時に呼び出す。
func (s *Service) Wait() {
	s.wg.Wait()
}
