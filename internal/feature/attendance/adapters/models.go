// Package adapters はattendanceフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"time"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// StudentModel is the GORM model for the students table.
// The attendance flow only reads it.
type StudentModel struct {
	ID                string `gorm:"primaryKey;size:36"`
	TenantID          string `gorm:"index;size:36;not null"`
	Name              string `gorm:"size:255;not null"`
	BeltRank          string `gorm:"size:32"`
	PhotoURL          string `gorm:"size:1024"`
	ReferencePhotoURL string `gorm:"size:1024"`
	Active            bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM.
func (StudentModel) TableName() string {
	return "students"
}

// ToEntity converts the GORM model to a domain entity.
func (m *StudentModel) ToEntity() entity.Student {
	return entity.Student{
		ID:                m.ID,
		TenantID:          m.TenantID,
		Name:              m.Name,
		BeltRank:          m.BeltRank,
		PhotoURL:          m.PhotoURL,
		ReferencePhotoURL: m.ReferencePhotoURL,
	}
}

// AttendanceModel is the GORM model for the attendance_records table.
// DraftID is unique so that one confirmation can never produce two records.
type AttendanceModel struct {
	ID                string                   `gorm:"primaryKey;size:36"`
	TenantID          string                   `gorm:"index;size:36;not null"`
	ClassID           *string                  `gorm:"index;size:36"`
	DraftID           string                   `gorm:"uniqueIndex;size:36;not null"`
	VisitorCount      int                      `gorm:"not null;default:0"`
	ExperimentalCount int                      `gorm:"not null;default:0"`
	EvidencePhotoRef  string                   `gorm:"size:512"`
	EvidenceDigest    string                   `gorm:"size:64"`
	CapturedAt        *time.Time               `gorm:"index"`
	CreatedAt         time.Time                `gorm:"not null"`
	Students          []AttendanceStudentModel `gorm:"foreignKey:AttendanceID"`
}

// TableName returns the table name for GORM.
func (AttendanceModel) TableName() string {
	return "attendance_records"
}

// AttendanceStudentModel links a present student to an attendance record.
type AttendanceStudentModel struct {
	ID           uint    `gorm:"primaryKey"`
	AttendanceID string  `gorm:"size:36;not null;uniqueIndex:idx_attendance_student"`
	StudentID    string  `gorm:"size:36;not null;uniqueIndex:idx_attendance_student"`
	Confidence   float64 `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (AttendanceStudentModel) TableName() string {
	return "attendance_students"
}

// AttendanceModelFromEntity converts a domain entity to a GORM model.
func AttendanceModelFromEntity(r *entity.AttendanceRecord) *AttendanceModel {
	links := make([]AttendanceStudentModel, 0, len(r.Students))
	for _, s := range r.Students {
		links = append(links, AttendanceStudentModel{
			AttendanceID: r.ID,
			StudentID:    s.StudentID,
			Confidence:   s.Confidence,
		})
	}
	return &AttendanceModel{
		ID:                r.ID,
		TenantID:          r.TenantID,
		ClassID:           r.ClassID,
		DraftID:           r.DraftID,
		VisitorCount:      r.VisitorCount,
		ExperimentalCount: r.ExperimentalCount,
		EvidencePhotoRef:  r.EvidencePhotoRef,
		EvidenceDigest:    r.EvidenceDigest,
		CapturedAt:        r.CapturedAt,
		CreatedAt:         r.CreatedAt,
		Students:          links,
	}
}

// Models は AutoMigrate の対象となるモデルの一覧です。
func Models() []any {
	return []any{&StudentModel{}, &AttendanceModel{}, &AttendanceStudentModel{}}
}
