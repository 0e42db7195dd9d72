package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentStatus is the collection state of one week.
// A partially collected week is still InstallmentStatusPaid: it is closed for
// this cycle and its shortfall moves to the next pending week.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

// Installment is one row of a loan's weekly collection schedule.
type Installment struct {
	ID             uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanID         uint              `gorm:"column:loan_id;not null;uniqueIndex:idx_schedule_loan_week" json:"loan_id" validate:"required"`
	Loan           Loan              `gorm:"foreignKey:LoanID" json:"-"`
	WeekNo         int               `gorm:"column:week_no;not null;uniqueIndex:idx_schedule_loan_week" json:"week_no" validate:"required,gt=0"`
	ExpectedAmount decimal.Decimal   `gorm:"column:expected_amount;type:numeric(12,2);not null;default:0" json:"expected_amount" validate:"gte=0"`
	PaidAmount     decimal.Decimal   `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0" json:"paid_amount" validate:"gte=0"`
	Status         InstallmentStatus `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status" validate:"omitempty,oneof=pending paid"`
	CollectionDate Date              `gorm:"column:collection_date;type:date" json:"collection_date"`
	PaidAt         *time.Time        `gorm:"column:paid_at" json:"paid_at,omitempty"`
	BatchID        *uuid.UUID        `gorm:"column:batch_id;type:uuid" json:"batch_id,omitempty"`
}

func (Installment) TableName() string {
	return "collection_schedule"
}

// IsPaid reports whether the week is already closed out.
func (i Installment) IsPaid() bool {
	return i.Status == InstallmentStatusPaid
}

// Outstanding is what is still owed on this week.
func (i Installment) Outstanding() decimal.Decimal {
	due := i.ExpectedAmount.Sub(i.PaidAmount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}
