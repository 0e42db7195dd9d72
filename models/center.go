package models

import "time"

// Center is a branch grouping members that meet on the same collection day.
type Center struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string     `gorm:"column:name;not null;size:100" json:"name"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	DayClosed     bool       `gorm:"column:day_closed;not null;default:false" json:"day_closed"`
	DayClosedDate *time.Time `gorm:"column:day_closed_date" json:"day_closed_date"`
	CreatedAt     time.Time  `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Center) TableName() string {
	return "centers"
}

// Member is a loan recipient attached to exactly one center.
type Member struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"column:name;not null;size:100" json:"name"`
	Mobile   string `gorm:"column:mobile;size:20" json:"mobile"`
	CenterID uint   `gorm:"column:center_id;not null;index" json:"center_id"`
	Center   Center `gorm:"foreignKey:CenterID" json:"-"`
	Loans    []Loan `gorm:"foreignKey:MemberID" json:"-"`
}

func (Member) TableName() string {
	return "members"
}

// ScheduleMarker records that a center's collection day was planned.
type ScheduleMarker struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CenterID     uint      `gorm:"column:center_id;not null;index" json:"center_id"`
	ScheduleDate Date      `gorm:"column:schedule_date;type:date;not null" json:"schedule_date"`
	DayName      string    `gorm:"column:day_name;not null;size:20" json:"day_name"`
	WeekNumber   int       `gorm:"column:week_number;not null" json:"week_number"`
	CreatedAt    time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ScheduleMarker) TableName() string {
	return "schedules"
}
