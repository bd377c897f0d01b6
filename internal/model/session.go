package model

import "time"

// AdminSession は管理者のログインセッションを表す。
// Tokenはログイン時に生成されるBearer資格情報で、全セッションを通じて一意。
// 有効期限はExpiresAtで固定され、期限切れの検出は読み取り時に遅延的に行われる。
type AdminSession struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *AdminSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
