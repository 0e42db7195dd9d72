package database

import (
	"context"
	"errors"
	"time"

	"loancollect/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store is the data access surface used by the services. Database is the
// postgres implementation, MemoryStore backs the tests.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	ListCenters(ctx context.Context, activeOnly bool) ([]models.Center, error)
	GetCenter(ctx context.Context, id uint) (*models.Center, error)
	SetCenterActive(ctx context.Context, id uint, active bool) error
	SetCenterDayClosed(ctx context.Context, id uint, closed bool, at *time.Time) error
	ReopenCentersClosedBefore(ctx context.Context, before time.Time) (int64, error)

	// ListMembersWithLoans returns the members of a center with their loans loaded.
	ListMembersWithLoans(ctx context.Context, centerID uint) ([]models.Member, error)
	// FindMemberLoanID returns the id of the member's first loan.
	FindMemberLoanID(ctx context.Context, memberID uint) (uint, error)

	NextPendingInstallment(ctx context.Context, loanID uint) (*models.Installment, error)
	UpsertInstallments(ctx context.Context, rows []models.Installment) error
	// LockLoanInstallments returns every installment of a loan ordered by
	// week number, locked for update until the surrounding transaction ends.
	LockLoanInstallments(ctx context.Context, loanID uint) ([]models.Installment, error)
	SaveInstallment(ctx context.Context, inst *models.Installment) error
	// ListInstallmentsByDate returns installments due on date with
	// Loan.Member.Center loaded. An empty status matches any status.
	ListInstallmentsByDate(ctx context.Context, date models.Date, status models.InstallmentStatus) ([]models.Installment, error)

	CreateDenomination(ctx context.Context, d *models.Denomination) error
	CreateScheduleMarker(ctx context.Context, m *models.ScheduleMarker) error

	// Transaction runs fn against a Store bound to one transaction. Any
	// error returned by fn rolls every write back.
	Transaction(ctx context.Context, fn func(Store) error) error
}
