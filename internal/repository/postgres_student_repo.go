package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/enrollman/internal/model"
)

// PostgresStudentRepo はPostgreSQLを使用した生徒リポジトリ。
type PostgresStudentRepo struct {
	db *sql.DB
}

// NewPostgresStudentRepo はPostgresStudentRepoを生成する。
func NewPostgresStudentRepo(db *sql.DB) *PostgresStudentRepo {
	return &PostgresStudentRepo{db: db}
}

// Create は申込レコードを保存する。
func (r *PostgresStudentRepo) Create(ctx context.Context, student *model.Student) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO students (id, grade, student_name, student_phone, parent_phone, school_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		student.ID, string(student.Grade), student.StudentName,
		student.StudentPhone, student.ParentPhone, student.SchoolName, student.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	student := &model.Student{}
	var grade string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, grade, student_name, student_phone, parent_phone, school_name, created_at
		 FROM students
		 WHERE id = $1`,
		id,
	).Scan(&student.ID, &grade, &student.StudentName,
		&student.StudentPhone, &student.ParentPhone, &student.SchoolName, &student.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}

	student.Grade = model.Grade(grade)
	return student, nil
}

// List は全レコードを返す。順序は未定義で、並べ替えは呼び出し側の責務。
func (r *PostgresStudentRepo) List(ctx context.Context) ([]*model.Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, grade, student_name, student_phone, parent_phone, school_name, created_at
		 FROM students`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		student := &model.Student{}
		var grade string
		if err := rows.Scan(&student.ID, &grade, &student.StudentName,
			&student.StudentPhone, &student.ParentPhone, &student.SchoolName, &student.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		student.Grade = model.Grade(grade)
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return students, nil
}

// compile-time interface check
var _ StudentRepository = (*PostgresStudentRepo)(nil)
