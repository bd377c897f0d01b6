// Package model はドメインモデルを定義する。
package model

import "time"

// Grade は学年を表す。エジプトの後期中等教育（ثانوية عامة）の3学年に対応する。
type Grade string

const (
	// GradeFirst は高校1年（الأول الثانوي）。
	GradeFirst Grade = "1"
	// GradeSecond は高校2年（الثاني الثانوي）。
	GradeSecond Grade = "2"
	// GradeThird は高校3年（الثالث الثانوي）。
	GradeThird Grade = "3"
)

// gradeLabels は学年コードからアラビア語表示名へのマッピング。
// スプレッドシートの行とCSVエクスポートで使用する。
var gradeLabels = map[Grade]string{
	GradeFirst:  "الأول الثانوي",
	GradeSecond: "الثاني الثانوي",
	GradeThird:  "الثالث الثانوي",
}

// Valid はGradeが定義済みの3値のいずれかであるかを返す。
func (g Grade) Valid() bool {
	_, ok := gradeLabels[g]
	return ok
}

// Label は学年のアラビア語表示名を返す。未定義の値には空文字列を返す。
func (g Grade) Label() string {
	return gradeLabels[g]
}

// Student は登録済みの生徒申込レコードを表す。
// IDとCreatedAtは作成時に採番され、作成後は一切変更されない。
type Student struct {
	ID           string
	Grade        Grade
	StudentName  string
	StudentPhone string
	ParentPhone  string
	SchoolName   string
	CreatedAt    time.Time
}
