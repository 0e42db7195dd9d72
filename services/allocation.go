package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"loancollect/models"
)

// AllocationResult is the outcome of applying one payment to a loan.
type AllocationResult struct {
	// Installments is the full schedule in week order after allocation.
	Installments []models.Installment
	// Touched holds the indexes into Installments that must be persisted.
	Touched []int
	// Applied is the part of the payment assigned to installments.
	Applied decimal.Decimal
	// Unapplied is what was left after the last pending installment.
	Unapplied decimal.Decimal
	// CarryOver is the shortfall rolled past the last touched installment.
	CarryOver decimal.Decimal
}

// Allocate applies payment to the pending installments of one loan in week
// order. Paid installments are left alone. Each pending week is owed its own
// expected amount plus the shortfall carried from the week before it:
//
//   - nothing left to pay: the week stays pending, its expected amount grows
//     by the carry and the whole amount carries on
//   - enough to cover it: the week is paid in full
//   - less than owed: the week is closed as paid with what was left and the
//     difference carries to the next week
//
// The input slice is not modified.
func Allocate(installments []models.Installment, payment decimal.Decimal) AllocationResult {
	out := make([]models.Installment, len(installments))
	copy(out, installments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].WeekNo < out[j].WeekNo })

	if payment.IsNegative() {
		payment = decimal.Zero
	}
	remaining := payment
	carryOver := decimal.Zero
	var touched []int

	for i := range out {
		inst := &out[i]
		if inst.IsPaid() {
			continue
		}

		expected := inst.ExpectedAmount.Add(carryOver)
		inst.ExpectedAmount = expected

		switch {
		case !remaining.IsPositive():
			inst.Status = models.InstallmentStatusPending
			carryOver = expected
		case remaining.GreaterThanOrEqual(expected):
			inst.Status = models.InstallmentStatusPaid
			inst.PaidAmount = expected
			remaining = remaining.Sub(expected)
			carryOver = decimal.Zero
		default:
			inst.Status = models.InstallmentStatusPaid
			inst.PaidAmount = remaining
			carryOver = expected.Sub(remaining)
			remaining = decimal.Zero
		}
		touched = append(touched, i)
	}

	return AllocationResult{
		Installments: out,
		Touched:      touched,
		Applied:      payment.Sub(remaining),
		Unapplied:    remaining,
		CarryOver:    carryOver,
	}
}
