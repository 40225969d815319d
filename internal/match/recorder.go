// Package match persists finished battle outcomes. Recording is best-effort:
// the coordinator logs failures and moves on, it never blocks or dies on the
// database.
package match

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Result struct {
	Player1ID int
	Player2ID int
	WinnerID  int
	Turns     int
	StartedAt time.Time
	EndedAt   time.Time
}

type Recorder interface {
	Record(ctx context.Context, r Result) error
}

type Match struct {
	ID        int `gorm:"primaryKey"`
	Player1ID int
	Player2ID int
	WinnerID  *int
	Status    string
	Turns     int
	StartedAt time.Time
	EndedAt   time.Time
	CreatedAt time.Time
}

func (Match) TableName() string { return "matches" }

type DBRecorder struct {
	db *gorm.DB
}

func NewDBRecorder(db *gorm.DB) *DBRecorder { return &DBRecorder{db: db} }

func (r *DBRecorder) Record(ctx context.Context, res Result) error {
	row := Match{
		Player1ID: res.Player1ID,
		Player2ID: res.Player2ID,
		Status:    "completed",
		Turns:     res.Turns,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
	if res.WinnerID != 0 {
		row.WinnerID = &res.WinnerID
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// NopRecorder drops results; used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Result) error { return nil }
