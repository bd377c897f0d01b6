package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// ユーザー向けメッセージはリファレンス実装に合わせてアラビア語で保持する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（ユーザー向け）
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// FieldViolation は入力検証で検出されたフィールド単位の違反を表す。
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError は申込入力の検証失敗を表す。
// 1回の検証で検出された全フィールドの違反を保持する。
// 検証失敗時は一切の永続化を行わないことが呼び出し側の契約。
type ValidationError struct {
	Violations []FieldViolation
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.Field
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// NewInvalidCredentialsError は管理者ログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "كلمة المرور غير صحيحة",
		Category: "auth",
		Action:   "تأكد من كلمة المرور وحاول مرة أخرى.",
	}
}

// NewUnauthorizedError はBearerトークン不在・無効・期限切れのエラーを生成する。
// 「存在しないトークン」と「期限切れトークン」は意図的に区別しない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Invalid or expired session",
		Category: "auth",
		Action:   "قم بتسجيل الدخول مرة أخرى.",
	}
}

// NewInternalError は予期しないサーバーエラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "حدث خطأ في النظام. يرجى المحاولة مرة أخرى.",
		Category: "system",
		Action:   "انتظر قليلاً ثم حاول مرة أخرى.",
	}
}
