// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/enrollman/internal/model"
)

// StudentRepository は生徒申込レコードの永続化インターフェース。
// レコードは作成後に更新・削除されることはなく、読み取りと列挙のみを行う。
type StudentRepository interface {
	// Create は申込レコードを保存する。ID・CreatedAtは呼び出し側で採番済みであること。
	Create(ctx context.Context, student *model.Student) error

	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Student, error)

	// List は全レコードを返す。順序は未定義で、並べ替えは呼び出し側の責務。
	List(ctx context.Context) ([]*model.Student, error)
}

// SessionRepository は管理者セッションの永続化インターフェース。
// セッションは常に提示されたトークンで検索されるため、トークンをキーとする。
type SessionRepository interface {
	// Create はセッションを保存する。トークンの一意性は呼び出し側が保証する。
	Create(ctx context.Context, session *model.AdminSession) error

	// FindByToken は指定トークンのセッションを取得する。
	// 存在しない場合と期限切れの場合はどちらもnilを返す。
	// 期限切れエントリの削除はこの読み取り時に遅延的に行われる。
	FindByToken(ctx context.Context, token string) (*model.AdminSession, error)

	// DeleteByToken は指定トークンのセッションを削除する。
	// 存在しないトークンに対しても成功する（冪等）。
	DeleteByToken(ctx context.Context, token string) error
}
