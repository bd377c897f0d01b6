package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/enrollman/internal/auth"
	"github.com/hitoshi/enrollman/internal/middleware"
	"github.com/hitoshi/enrollman/internal/model"
)

// AuthServiceInterface は管理者ハンドラーが必要とする認証サービスインターフェース。
type AuthServiceInterface interface {
	// Login はパスワードを検証してセッショントークンを発行する。
	Login(ctx context.Context, password string) (string, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, token string) error
}

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	authService AuthServiceInterface
	service     EnrollmentServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(authService AuthServiceInterface, service EnrollmentServiceInterface) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		service:     service,
	}
}

// loginRequest は管理者ログインリクエストのボディ。
type loginRequest struct {
	Password string `json:"password"`
}

// loginResponse は管理者ログイン成功のレスポンス。
type loginResponse struct {
	Message      string `json:"message"`
	SessionToken string `json:"sessionToken"`
}

// messageResponse は操作完了メッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// Login は管理者ログインを処理する。
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteValidationErrorResponse(w, &model.ValidationError{
			Violations: []model.FieldViolation{
				{Field: "body", Message: "بيانات غير صحيحة"},
			},
		})
		return
	}

	token, err := h.authService.Login(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		slog.Error("管理者ログインに失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Message:      "تم تسجيل الدخول بنجاح",
		SessionToken: token,
	})
}

// Logout は管理者セッションを破棄する。
// POST /api/admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.authService.Logout(r.Context(), session.Token); err != nil {
		slog.Error("管理者ログアウトに失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messageResponse{Message: "تم تسجيل الخروج بنجاح"})
}

// ListStudents は全申込を登録日時の降順で返す。
// GET /api/admin/students
func (h *AdminHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListNewestFirst(r.Context())
	if err != nil {
		slog.Error("申込一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toStudentResponses(students))
}

// csvHeader はCSVエクスポートのヘッダー行。スプレッドシートミラーと同じ列構成。
var csvHeader = []string{
	"تاريخ التسجيل",
	"الصف الدراسي",
	"اسم الطالب",
	"رقم هاتف الطالب",
	"رقم هاتف ولي الأمر",
	"اسم المدرسة",
}

// ExportCSV は全申込をCSVファイルとしてダウンロードさせる。
// Excelでアラビア語が文字化けしないようUTF-8 BOMを先頭に付与する。
// GET /api/admin/students/export
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListNewestFirst(r.Context())
	if err != nil {
		slog.Error("申込一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="students.csv"`)
	w.Write([]byte("\xEF\xBB\xBF"))

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		slog.Error("CSVヘッダーの書き込みに失敗しました", slog.String("error", err.Error()))
		return
	}
	for _, s := range students {
		record := []string{
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.Grade.Label(),
			s.StudentName,
			s.StudentPhone,
			s.ParentPhone,
			s.SchoolName,
		}
		if err := cw.Write(record); err != nil {
			slog.Error("CSV行の書き込みに失敗しました", slog.String("error", err.Error()))
			return
		}
	}
	cw.Flush()
}
