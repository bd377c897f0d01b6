// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService は申込フォームの自由入力テキスト（氏名・学校名）を
// サニタイズし、XSS攻撃などのセキュリティリスクから管理画面を保護する。
// bluemondayライブラリのStrictPolicyを使用し、HTMLタグを一切許可しない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService は自由入力テキストのサニタイズ機能のインターフェースを定義する。
// 申込データの検証前処理として使用される。
type InputSanitizerService interface {
	// Sanitize は入力テキストからHTMLタグを全て除去し、前後の空白を取り除く。
	// タグは許可せず除去のみ行うため、プレーンテキスト以外は残らない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのHTMLタグと属性を除去し、テキストノードのみを残す。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからHTMLを除去し、前後の空白をトリムして返す。
func (s *inputSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
