package adapters

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

// rosterGorm はRosterRepositoryインターフェースのGORM実装です。読み取り専用です。
type rosterGorm struct {
	db *gorm.DB
}

// rosterGormがRosterRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.RosterRepository = (*rosterGorm)(nil)

// NewRosterGorm は指定されたgorm.DB接続でrosterGormの新しいインスタンスを生成します。
func NewRosterGorm(db *gorm.DB) *rosterGorm {
	return &rosterGorm{db: db}
}

// withReferencePhoto は照合対象（在籍中かつ参照写真あり）の生徒に絞り込みます。
func (r *rosterGorm) withReferencePhoto(ctx context.Context, tenantID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&StudentModel{}).
		Where("tenant_id = ? AND active = ? AND reference_photo_url <> ''", tenantID, true)
}

// CountWithReferencePhotos は参照写真が登録された生徒数を返します。
func (r *rosterGorm) CountWithReferencePhotos(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	if err := r.withReferencePhoto(ctx, tenantID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// FindByIDs は指定IDの生徒を名前順（pt-BR 照合順序）で返します。
func (r *rosterGorm) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]entity.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []StudentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	return toSortedStudents(models), nil
}

// ListWithReferencePhotos は照合対象の生徒を名前順で返します。
func (r *rosterGorm) ListWithReferencePhotos(ctx context.Context, tenantID string) ([]entity.Student, error) {
	var models []StudentModel
	if err := r.withReferencePhoto(ctx, tenantID).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return toSortedStudents(models), nil
}

// toSortedStudents はアクセントや大文字小文字を考慮したポルトガル語の順序で並べます。
func toSortedStudents(models []StudentModel) []entity.Student {
	out := make([]entity.Student, 0, len(models))
	for i := range models {
		out = append(out, models[i].ToEntity())
	}
	col := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}
