package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/enrollman/internal/model"
)

// MemoryStudentRepo はプロセス内メモリに生徒レコードを保持するリポジトリ。
// リファレンス実装と同じくプロセス再起動でデータは失われる。
// 複数のリクエストから並行に呼び出されるためミューテックスで保護する。
type MemoryStudentRepo struct {
	mu       sync.RWMutex
	students map[string]*model.Student
	order    []string // 挿入順。Listの安定した列挙順を保証する
}

// NewMemoryStudentRepo はMemoryStudentRepoを生成する。
func NewMemoryStudentRepo() *MemoryStudentRepo {
	return &MemoryStudentRepo{
		students: make(map[string]*model.Student),
	}
}

// Create は申込レコードを保存する。
func (r *MemoryStudentRepo) Create(_ context.Context, student *model.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *student
	r.students[student.ID] = &copied
	r.order = append(r.order, student.ID)
	return nil
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *MemoryStudentRepo) FindByID(_ context.Context, id string) (*model.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.students[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// List は全レコードを挿入順で返す。
func (r *MemoryStudentRepo) List(_ context.Context) ([]*model.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Student, 0, len(r.order))
	for _, id := range r.order {
		copied := *r.students[id]
		result = append(result, &copied)
	}
	return result, nil
}

// compile-time interface check
var _ StudentRepository = (*MemoryStudentRepo)(nil)
