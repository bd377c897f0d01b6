package enrollment

import (
	"regexp"
	"unicode/utf8"

	"github.com/hitoshi/enrollman/internal/model"
)

// エジプト携帯電話番号の形式。先頭は010/011/012/015で合計11桁。
var egyptianPhonePattern = regexp.MustCompile(`^01[0125][0-9]{8}$`)

// 自由入力テキストの長さ制限（ルーン数）
const (
	minNameLength = 2
	maxNameLength = 100
)

// Sanitizer は自由入力テキストの前処理インターフェース。
// 検証前に氏名・学校名からHTMLタグを除去するために使用する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// SubmitInput は申込フォームから受け取る入力を表す。
type SubmitInput struct {
	Grade        string `json:"grade"`
	StudentName  string `json:"studentName"`
	StudentPhone string `json:"studentPhone"`
	ParentPhone  string `json:"parentPhone"`
	SchoolName   string `json:"schoolName"`
}

// validateSubmitInput は申込入力を検証し、サニタイズ済みの値で上書きする。
// 全フィールドを検証してから違反をまとめて返す（最初の違反で打ち切らない）。
// 違反メッセージはフォーム利用者向けにアラビア語で返す。
func validateSubmitInput(input *SubmitInput, sanitizer Sanitizer) *model.ValidationError {
	var violations []model.FieldViolation

	if sanitizer != nil {
		input.StudentName = sanitizer.Sanitize(input.StudentName)
		input.SchoolName = sanitizer.Sanitize(input.SchoolName)
	}

	if !model.Grade(input.Grade).Valid() {
		violations = append(violations, model.FieldViolation{
			Field:   "grade",
			Message: "يرجى اختيار الصف الدراسي",
		})
	}

	switch n := utf8.RuneCountInString(input.StudentName); {
	case n < minNameLength:
		violations = append(violations, model.FieldViolation{
			Field:   "studentName",
			Message: "يجب أن يكون الاسم على الأقل حرفين",
		})
	case n > maxNameLength:
		violations = append(violations, model.FieldViolation{
			Field:   "studentName",
			Message: "الاسم طويل جداً",
		})
	}

	if !egyptianPhonePattern.MatchString(input.StudentPhone) {
		violations = append(violations, model.FieldViolation{
			Field:   "studentPhone",
			Message: "يرجى إدخال رقم هاتف صحيح (01xxxxxxxxx)",
		})
	}

	if !egyptianPhonePattern.MatchString(input.ParentPhone) {
		violations = append(violations, model.FieldViolation{
			Field:   "parentPhone",
			Message: "يرجى إدخال رقم هاتف صحيح (01xxxxxxxxx)",
		})
	}

	switch n := utf8.RuneCountInString(input.SchoolName); {
	case n < minNameLength:
		violations = append(violations, model.FieldViolation{
			Field:   "schoolName",
			Message: "يجب أن يكون اسم المدرسة على الأقل حرفين",
		})
	case n > maxNameLength:
		violations = append(violations, model.FieldViolation{
			Field:   "schoolName",
			Message: "اسم المدرسة طويل جداً",
		})
	}

	if len(violations) > 0 {
		return &model.ValidationError{Violations: violations}
	}
	return nil
}
