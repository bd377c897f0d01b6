package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/enrollman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。検証エラーの場合はフィールド単位の違反も含む。
type ErrorResponseBody struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Category string                 `json:"category"`
	Action   string                 `json:"action"`
	Errors   []model.FieldViolation `json:"errors,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteValidationErrorResponse は入力検証失敗の400レスポンスを書き込む。
// 全フィールドの違反をerrors配列で返す。
func WriteValidationErrorResponse(w http.ResponseWriter, verr *model.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     model.ErrCodeValidationFailed,
		Message:  "بيانات غير صحيحة",
		Category: "validation",
		Action:   "راجع الحقول المحددة وأعد الإرسال.",
		Errors:   verr.Violations,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
