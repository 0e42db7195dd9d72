package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusApplied  LoanStatus = "APPLIED"
	LoanStatusCredited LoanStatus = "CREDITED" // money handed over, installments being collected
	LoanStatusClosed   LoanStatus = "CLOSED"
)

// Loan is a credit extended to a member and repaid weekly.
type Loan struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID     uint            `gorm:"column:member_id;not null;index" json:"member_id"`
	Member       Member          `gorm:"foreignKey:MemberID" json:"-"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null;default:0" json:"amount"`
	Status       LoanStatus      `gorm:"column:status;type:varchar(20);not null;default:'APPLIED'" json:"status"`
	Installments []Installment   `gorm:"foreignKey:LoanID" json:"-"`
	CreatedAt    time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Loan) TableName() string {
	return "loans"
}
