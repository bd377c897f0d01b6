// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/enrollman/internal/enrollment"
	"github.com/hitoshi/enrollman/internal/middleware"
	"github.com/hitoshi/enrollman/internal/model"
)

// EnrollmentServiceInterface は申込ハンドラーが必要とするサービスインターフェース。
type EnrollmentServiceInterface interface {
	// Submit は申込を検証して受理する。
	Submit(ctx context.Context, input enrollment.SubmitInput) (*model.Student, error)
	// ListNewestFirst は全申込を登録日時の降順で返す。
	ListNewestFirst(ctx context.Context) ([]*model.Student, error)
}

// StudentHandler は生徒申込のHTTPハンドラー。
type StudentHandler struct {
	service EnrollmentServiceInterface
}

// NewStudentHandler はStudentHandlerを生成する。
func NewStudentHandler(service EnrollmentServiceInterface) *StudentHandler {
	return &StudentHandler{service: service}
}

// studentResponse は申込レコードのAPIレスポンス。
type studentResponse struct {
	ID           string    `json:"id"`
	Grade        string    `json:"grade"`
	StudentName  string    `json:"studentName"`
	StudentPhone string    `json:"studentPhone"`
	ParentPhone  string    `json:"parentPhone"`
	SchoolName   string    `json:"schoolName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// registerResponse は申込受理のレスポンス。
// 受理確認画面に必要な最小限のフィールドのみ返す。
type registerResponse struct {
	Message string                 `json:"message"`
	Student registerStudentSummary `json:"student"`
}

type registerStudentSummary struct {
	ID          string    `json:"id"`
	Grade       string    `json:"grade"`
	StudentName string    `json:"studentName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Register は申込フォームの送信を処理する。
// POST /api/students
func (h *StudentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input enrollment.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteValidationErrorResponse(w, &model.ValidationError{
			Violations: []model.FieldViolation{
				{Field: "body", Message: "بيانات غير صحيحة"},
			},
		})
		return
	}

	student, err := h.service.Submit(r.Context(), input)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			middleware.WriteValidationErrorResponse(w, verr)
			return
		}
		slog.Error("申込の受理に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(registerResponse{
		Message: "تم التسجيل بنجاح",
		Student: registerStudentSummary{
			ID:          student.ID,
			Grade:       string(student.Grade),
			StudentName: student.StudentName,
			CreatedAt:   student.CreatedAt,
		},
	})
}

// List は全申込を返す。
// GET /api/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListNewestFirst(r.Context())
	if err != nil {
		slog.Error("申込一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toStudentResponses(students))
}

// toStudentResponses は申込レコードをAPIレスポンスに変換する。
// nilスライスでも空のJSON配列を返す。
func toStudentResponses(students []*model.Student) []studentResponse {
	responses := make([]studentResponse, len(students))
	for i, s := range students {
		responses[i] = studentResponse{
			ID:           s.ID,
			Grade:        string(s.Grade),
			StudentName:  s.StudentName,
			StudentPhone: s.StudentPhone,
			ParentPhone:  s.ParentPhone,
			SchoolName:   s.SchoolName,
			CreatedAt:    s.CreatedAt,
		}
	}
	return responses
}
