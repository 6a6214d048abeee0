package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

// pgUniqueViolation は PostgreSQL の一意制約違反のエラーコードです。
const pgUniqueViolation = "23505"

// attendanceGorm はAttendanceRepositoryインターフェースのGORM実装です。
// 記録の作成のみを提供し、更新・削除は行いません。
type attendanceGorm struct {
	db  *gorm.DB
	now func() time.Time
}

// attendanceGormがAttendanceRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.AttendanceRepository = (*attendanceGorm)(nil)

// NewAttendanceGorm は指定されたgorm.DB接続でattendanceGormの新しいインスタンスを生成します。
func NewAttendanceGorm(db *gorm.DB) *attendanceGorm {
	return &attendanceGorm{db: db, now: time.Now}
}

// Create は親レコードと生徒リンクを1つのトランザクションで作成します。
// 途中で失敗した場合は何も残りません。同じ DraftID の記録がある場合は usecase.ErrAlreadyCommitted を返します。
func (r *attendanceGorm) Create(ctx context.Context, rec *entity.AttendanceRecord) error {
	model := AttendanceModelFromEntity(rec)
	model.ID = uuid.NewString()
	model.CreatedAt = r.now().UTC()
	links := model.Students
	model.Students = nil
	for i := range links {
		links[i].AttendanceID = model.ID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if isDuplicateKey(err) {
				return usecase.ErrAlreadyCommitted
			}
			return fmt.Errorf("insert attendance record: %w", err)
		}
		if len(links) == 0 {
			return nil
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("insert attendance students: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rec.ID = model.ID
	rec.CreatedAt = model.CreatedAt
	return nil
}

// isDuplicateKey は一意制約違反かどうかを判定します。
// TranslateError が有効なら gorm.ErrDuplicatedKey、無効なら pgconn のエラーコードで判定します。
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
