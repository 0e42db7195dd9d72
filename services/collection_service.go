package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loancollect/database"
	"loancollect/models"
	"loancollect/utils"
)

// CollectionItem is one member's cash handed in with a batch
type CollectionItem struct {
	MemberID uint            `json:"member_id"`
	Amount   decimal.Decimal `json:"amount" validate:"gte=0"`
}

// PayBatchRequest is the body of POST /api/collections/pay-batch
type PayBatchRequest struct {
	Collection   []CollectionItem  `json:"collection" validate:"dive"`
	Denomination models.NoteCounts `json:"denomination"`
}

// MemberAllocation reports how one member's amount was applied.
type MemberAllocation struct {
	MemberID  uint            `json:"member_id"`
	LoanID    uint            `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Applied   decimal.Decimal `json:"applied"`
	Unapplied decimal.Decimal `json:"unapplied"`
	CarryOver decimal.Decimal `json:"carry_over"`
	WeeksPaid int             `json:"weeks_paid"`
}

// SkippedMember is a batch entry that could not be applied to any loan.
type SkippedMember struct {
	MemberID uint            `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
}

// BatchResult is the response of a posted batch
type BatchResult struct {
	Message   string             `json:"message"`
	BatchID   uuid.UUID          `json:"batch_id"`
	Total     decimal.Decimal    `json:"total"`
	Succeeded []MemberAllocation `json:"succeeded"`
	Skipped   []SkippedMember    `json:"skipped"`
}

// MemberDue is a member with the next pending week of their loan.
type MemberDue struct {
	MemberID       uint            `json:"member_id"`
	LoanID         uint            `json:"loan_id"`
	Name           string          `json:"name"`
	WeeklyAmount   decimal.Decimal `json:"weekly_amount"`
	WeekNo         *int            `json:"week_no"`
	CollectionDate *models.Date    `json:"collection_date"`
}

// DailyCollection is one paid installment in the daily report
type DailyCollection struct {
	CenterName string          `json:"center_name"`
	MemberName string          `json:"member_name"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     models.Date     `json:"paid_at"`
}

// DailyTotal is the amount collected on one date
type DailyTotal struct {
	Date        string          `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Payments    int             `json:"payments"`
}

// UnpaidCollection is an installment due today that is not fully collected.
type UnpaidCollection struct {
	ScheduleID     uint            `json:"schedule_id"`
	CenterName     string          `json:"center_name"`
	MemberName     string          `json:"member_name"`
	Mobile         string          `json:"mobile"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	AmountDue      decimal.Decimal `json:"amount_due"`
}

// CollectionService handles weekly schedules, payment batches and reports
type CollectionService struct {
	store   database.Store
	metrics *utils.Metrics
	now     func() time.Time
}

// NewCollectionService creates a CollectionService, a nil metrics gets a private registry
func NewCollectionService(store database.Store, metrics *utils.Metrics) *CollectionService {
	if metrics == nil {
		metrics = utils.NewMetrics()
	}
	return &CollectionService{store: store, metrics: metrics, now: time.Now}
}

func (s *CollectionService) today() models.Date {
	return models.NewDate(s.now())
}

// MembersDue lists every member of a center that has a loan, with the amount
// and date of that loan's next pending week. Members with nothing pending
// get a zero amount and null week.
func (s *CollectionService) MembersDue(ctx context.Context, centerID uint) ([]MemberDue, error) {
	const failMsg = "Failed to fetch weekly amount"

	members, err := s.store.ListMembersWithLoans(ctx, centerID)
	if err != nil {
		return nil, newStoreError("list members", failMsg, err)
	}

	result := []MemberDue{}
	for _, m := range members {
		if len(m.Loans) == 0 {
			continue
		}
		loanID := m.Loans[0].ID

		due := MemberDue{
			MemberID:     m.ID,
			LoanID:       loanID,
			Name:         m.Name,
			WeeklyAmount: decimal.Zero,
		}

		next, err := s.store.NextPendingInstallment(ctx, loanID)
		switch {
		case err == nil:
			weekNo := next.WeekNo
			due.WeeklyAmount = next.ExpectedAmount
			due.WeekNo = &weekNo
			if !next.CollectionDate.IsZero() {
				date := next.CollectionDate
				due.CollectionDate = &date
			}
		case errors.Is(err, database.ErrNotFound):
		default:
			return nil, newStoreError("next pending installment", failMsg, err)
		}

		result = append(result, due)
	}
	return result, nil
}

// SaveSchedule upserts schedule rows keyed on (loan_id, week_no).
func (s *CollectionService) SaveSchedule(ctx context.Context, rows []models.Installment) ([]models.Installment, error) {
	if len(rows) == 0 {
		return nil, newValidationError("No schedule rows provided")
	}

	seen := make(map[[2]uint]bool, len(rows))
	for i := range rows {
		key := [2]uint{rows[i].LoanID, uint(rows[i].WeekNo)}
		if seen[key] {
			return nil, newValidationError("Duplicate week %d for loan %d", rows[i].WeekNo, rows[i].LoanID)
		}
		seen[key] = true

		rows[i].ID = 0
		if rows[i].Status == "" {
			rows[i].Status = models.InstallmentStatusPending
		}
	}

	if err := s.store.UpsertInstallments(ctx, rows); err != nil {
		return nil, newStoreError("upsert schedule", "Failed to save schedule", err)
	}
	return rows, nil
}

// PayBatch checks the batch against its cash breakdown and applies every
// member's amount to their loan schedule. The check happens before any
// write. All writes of a batch share one transaction.
func (s *CollectionService) PayBatch(ctx context.Context, req PayBatchRequest) (*BatchResult, error) {
	start := time.Now()

	if len(req.Collection) == 0 {
		return nil, newValidationError("No collection data provided")
	}

	totalCollection := decimal.Zero
	for _, item := range req.Collection {
		if item.Amount.IsNegative() {
			return nil, newValidationError("Amount for member %d must not be negative", item.MemberID)
		}
		totalCollection = totalCollection.Add(item.Amount)
	}

	totalNotes := totalCollection
	if req.Denomination != nil {
		var err error
		totalNotes, err = req.Denomination.Total()
		if err != nil {
			return nil, newValidationError("Invalid denomination: %v", err)
		}
	}

	if !totalCollection.Equal(totalNotes) {
		s.metrics.RecordRejectedBatch()
		return nil, newValidationError("Denomination mismatch ₹%s vs ₹%s", totalNotes, totalCollection)
	}

	result := &BatchResult{
		Message:   "Collection saved successfully",
		BatchID:   uuid.New(),
		Total:     totalCollection,
		Succeeded: []MemberAllocation{},
		Skipped:   []SkippedMember{},
	}
	paidAt := s.now().UTC()
	updated := 0

	err := s.store.Transaction(ctx, func(tx database.Store) error {
		for _, item := range req.Collection {
			alloc, reason, n, err := s.applyPayment(ctx, tx, item, result.BatchID, paidAt)
			if err != nil {
				return err
			}
			if reason != "" {
				result.Skipped = append(result.Skipped, SkippedMember{MemberID: item.MemberID, Amount: item.Amount, Reason: reason})
				continue
			}
			updated += n
			result.Succeeded = append(result.Succeeded, *alloc)
		}

		if req.Denomination != nil {
			den := &models.Denomination{
				BatchID: result.BatchID,
				Notes:   req.Denomination,
				Total:   totalNotes,
			}
			if err := tx.CreateDenomination(ctx, den); err != nil {
				return fmt.Errorf("save denomination: %w", err)
			}
		}
		return nil
	})
	utils.LogOperation("pay-batch "+result.BatchID.String(), start, err)
	if err != nil {
		return nil, newStoreError("pay batch", "Payment failed", err)
	}

	s.metrics.RecordBatch(updated, len(result.Skipped))
	return result, nil
}

// applyPayment allocates one member's amount inside tx. A non-empty reason
// means the entry was skipped without writes.
func (s *CollectionService) applyPayment(ctx context.Context, tx database.Store, item CollectionItem, batchID uuid.UUID, paidAt time.Time) (*MemberAllocation, string, int, error) {
	if item.MemberID == 0 {
		return nil, "missing member_id", 0, nil
	}

	loanID, err := tx.FindMemberLoanID(ctx, item.MemberID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, "no loan found for member", 0, nil
	}
	if err != nil {
		return nil, "", 0, fmt.Errorf("find loan of member %d: %w", item.MemberID, err)
	}

	schedule, err := tx.LockLoanInstallments(ctx, loanID)
	if err != nil {
		return nil, "", 0, fmt.Errorf("lock schedule of loan %d: %w", loanID, err)
	}
	if len(schedule) == 0 {
		return nil, "no collection schedule for loan", 0, nil
	}

	res := Allocate(schedule, item.Amount)
	weeksPaid := 0
	for _, idx := range res.Touched {
		inst := res.Installments[idx]
		inst.BatchID = &batchID
		if inst.IsPaid() {
			inst.PaidAt = &paidAt
			weeksPaid++
		}
		if err := tx.SaveInstallment(ctx, &inst); err != nil {
			return nil, "", 0, fmt.Errorf("save installment %d: %w", inst.ID, err)
		}
	}

	if res.Unapplied.IsPositive() {
		utils.LogInfo("batch %s: %s of member %d not applied, loan %d has no pending weeks left",
			batchID, res.Unapplied, item.MemberID, loanID)
	}

	return &MemberAllocation{
		MemberID:  item.MemberID,
		LoanID:    loanID,
		Amount:    item.Amount,
		Applied:   res.Applied,
		Unapplied: res.Unapplied,
		CarryOver: res.CarryOver,
		WeeksPaid: weeksPaid,
	}, "", len(res.Touched), nil
}

// DailyCollections lists the installments paid for today's collection date.
func (s *CollectionService) DailyCollections(ctx context.Context) ([]DailyCollection, error) {
	rows, err := s.store.ListInstallmentsByDate(ctx, s.today(), models.InstallmentStatusPaid)
	if err != nil {
		return nil, newStoreError("daily collections", "Failed to fetch daily collections", err)
	}

	result := make([]DailyCollection, 0, len(rows))
	for _, row := range rows {
		result = append(result, DailyCollection{
			CenterName: row.Loan.Member.Center.Name,
			MemberName: row.Loan.Member.Name,
			Amount:     row.PaidAmount,
			PaidAt:     row.CollectionDate,
		})
	}
	return result, nil
}

// DailyTotal sums paid amounts for a YYYY-MM-DD date, today when empty.
func (s *CollectionService) DailyTotal(ctx context.Context, date string) (*DailyTotal, error) {
	day := s.today()
	if date != "" {
		parsed, err := models.ParseDate(date)
		if err != nil {
			return nil, newValidationError("Invalid date, expected YYYY-MM-DD")
		}
		day = parsed
	}

	rows, err := s.store.ListInstallmentsByDate(ctx, day, models.InstallmentStatusPaid)
	if err != nil {
		return nil, newStoreError("daily total", "Failed to fetch daily total", err)
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.PaidAmount)
	}
	return &DailyTotal{Date: day.String(), TotalAmount: total, Payments: len(rows)}, nil
}

// UnpaidDueToday lists today's installments whose paid amount is below the
// expected amount.
func (s *CollectionService) UnpaidDueToday(ctx context.Context) ([]UnpaidCollection, error) {
	rows, err := s.store.ListInstallmentsByDate(ctx, s.today(), "")
	if err != nil {
		return nil, newStoreError("unpaid collections", "Failed to fetch unpaid members", err)
	}

	result := []UnpaidCollection{}
	for _, row := range rows {
		due := row.Outstanding()
		if !due.IsPositive() {
			continue
		}
		member := row.Loan.Member
		result = append(result, UnpaidCollection{
			ScheduleID:     row.ID,
			CenterName:     member.Center.Name,
			MemberName:     member.Name,
			Mobile:         member.Mobile,
			ExpectedAmount: row.ExpectedAmount,
			PaidAmount:     row.PaidAmount,
			AmountDue:      due,
		})
	}
	return result, nil
}
