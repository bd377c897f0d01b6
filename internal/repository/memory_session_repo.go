package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/enrollman/internal/model"
)

// MemorySessionRepo はプロセス内メモリに管理者セッションを保持するリポジトリ。
// トークンをキーとし、期限切れの検出と削除は読み取り時に遅延的に行う。
// バックグラウンドの掃除処理は持たない。
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.AdminSession

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.AdminSession),
		now:      time.Now,
	}
}

// Create はセッションをトークンをキーとして保存する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.AdminSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.Token] = &copied
	return nil
}

// FindByToken は指定トークンのセッションを取得する。
// 期限切れのエントリはこの時点で削除し、nilを返す（遅延エビクション）。
func (r *MemorySessionRepo) FindByToken(_ context.Context, token string) (*model.AdminSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	if s.Expired(r.now()) {
		delete(r.sessions, token)
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// DeleteByToken は指定トークンのセッションを削除する。冪等。
func (r *MemorySessionRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
