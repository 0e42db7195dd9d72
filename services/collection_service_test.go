package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"


	"loancollect/database"
	"loancollect/models"
	"loancollect/utils"
)

var testNow = time.Date(2024, 3, 11, 10, 30, 0, 0, time.UTC)

func init() {
	utils.SetLogOutput(io.Discard)
}

type fixture struct {
	store    *database.MemoryStore
	centerID uint
	memberA  uint
	memberB  uint
	loanA    uint
	loanB    uint
}

// newFixture seeds one center with two credited members, each owing
// 100 a week for two weeks starting today.
func newFixture() *fixture {
	store := database.NewMemoryStore()
	f := &fixture{store: store}
	f.centerID = store.AddCenter(models.Center{Name: "Anna Nagar", IsActive: true})
	f.memberA = store.AddMember(models.Member{Name: "Lakshmi", Mobile: "9000000001", CenterID: f.centerID})
	f.memberB = store.AddMember(models.Member{Name: "Meena", Mobile: "9000000002", CenterID: f.centerID})
	f.loanA = store.AddLoan(models.Loan{MemberID: f.memberA, Amount: d("5000"), Status: models.LoanStatusCredited})
	f.loanB = store.AddLoan(models.Loan{MemberID: f.memberB, Amount: d("5000"), Status: models.LoanStatusCredited})

	today := models.NewDate(testNow)
	next := models.NewDate(testNow.AddDate(0, 0, 7))
	for _, loanID := range []uint{f.loanA, f.loanB} {
		store.AddInstallment(models.Installment{LoanID: loanID, WeekNo: 1, ExpectedAmount: d("100"), CollectionDate: today})
		store.AddInstallment(models.Installment{LoanID: loanID, WeekNo: 2, ExpectedAmount: d("100"), CollectionDate: next})
	}
	return f
}

func (f *fixture) collections() *CollectionService {
	s := NewCollectionService(f.store, utils.NewMetrics())
	s.now = func() time.Time { return testNow }
	return s
}

func TestPayBatchAppliesAndLinksDenomination(t *testing.T) {
	f := newFixture()
	s := f.collections()

	res, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection: []CollectionItem{
			{MemberID: f.memberA, Amount: d("150")},
			{MemberID: f.memberB, Amount: d("100")},
		},
		Denomination: models.NoteCounts{"100": d("2"), "50": d("1")},
	})
	if err != nil {
		t.Fatalf("PayBatch: %v", err)
	}
	if res.Message != "Collection saved successfully" {
		t.Errorf("message = %q", res.Message)
	}
	if len(res.Succeeded) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("succeeded %d skipped %d", len(res.Succeeded), len(res.Skipped))
	}
	if !res.Succeeded[0].CarryOver.Equal(d("50")) {
		t.Errorf("member A carry over = %s, want 50", res.Succeeded[0].CarryOver)
	}

	a := f.store.Installments(f.loanA)
	checkWeeks(t, a, []wantWeek{
		{models.InstallmentStatusPaid, "100", "100"},
		{models.InstallmentStatusPaid, "100", "50"},
	})
	for _, inst := range a {
		if inst.BatchID == nil || *inst.BatchID != res.BatchID {
			t.Errorf("week %d batch id = %v, want %s", inst.WeekNo, inst.BatchID, res.BatchID)
		}
		if inst.PaidAt == nil || !inst.PaidAt.Equal(testNow) {
			t.Errorf("week %d paid at = %v", inst.WeekNo, inst.PaidAt)
		}
	}

	b := f.store.Installments(f.loanB)
	if b[1].PaidAt != nil {
		t.Error("pending week must not get a paid time")
	}

	dens := f.store.Denominations()
	if len(dens) != 1 {
		t.Fatalf("denominations = %d, want 1", len(dens))
	}
	if dens[0].BatchID != res.BatchID || !dens[0].Total.Equal(d("250")) {
		t.Errorf("denomination = %+v", dens[0])
	}

	snap := s.metrics.GetMetricsSnapshot()
	if snap["batches_posted"] != int64(1) {
		t.Errorf("batches_posted = %v", snap["batches_posted"])
	}
}

func TestPayBatchDenominationMismatch(t *testing.T) {
	f := newFixture()
	s := f.collections()

	_, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection:   []CollectionItem{{MemberID: f.memberA, Amount: d("100")}},
		Denomination: models.NoteCounts{"50": d("1"), "20": d("2")},
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Message != "Denomination mismatch ₹90 vs ₹100" {
		t.Errorf("message = %q", verr.Message)
	}
	for _, inst := range f.store.Installments(f.loanA) {
		if inst.Status != models.InstallmentStatusPending || !inst.PaidAmount.IsZero() {
			t.Errorf("week %d changed: %+v", inst.WeekNo, inst)
		}
	}
	if len(f.store.Denominations()) != 0 {
		t.Error("rejected batch stored a denomination")
	}
	if s.metrics.GetMetricsSnapshot()["batches_rejected"] != int64(1) {
		t.Error("rejected batch not counted")
	}
}

func TestPayBatchValidation(t *testing.T) {
	f := newFixture()
	s := f.collections()

	tests := []struct {
		name string
		req  PayBatchRequest
	}{
		{"empty collection", PayBatchRequest{}},
		{"negative amount", PayBatchRequest{Collection: []CollectionItem{{MemberID: f.memberA, Amount: d("-5")}}}},
		{"bad note value", PayBatchRequest{
			Collection:   []CollectionItem{{MemberID: f.memberA, Amount: d("100")}},
			Denomination: models.NoteCounts{"hundred": d("1")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.PayBatch(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestPayBatchReportsSkippedMembers(t *testing.T) {
	f := newFixture()
	noLoan := f.store.AddMember(models.Member{Name: "Priya", CenterID: f.centerID})
	withoutSchedule := f.store.AddMember(models.Member{Name: "Devi", CenterID: f.centerID})
	f.store.AddLoan(models.Loan{MemberID: withoutSchedule, Amount: d("1000"), Status: models.LoanStatusCredited})
	s := f.collections()

	res, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection: []CollectionItem{
			{MemberID: f.memberA, Amount: d("100")},
			{MemberID: noLoan, Amount: d("40")},
			{MemberID: withoutSchedule, Amount: d("60")},
			{MemberID: 0, Amount: d("0")},
		},
	})
	if err != nil {
		t.Fatalf("PayBatch: %v", err)
	}
	if len(res.Succeeded) != 1 || res.Succeeded[0].MemberID != f.memberA {
		t.Fatalf("succeeded = %+v", res.Succeeded)
	}

	want := map[uint]string{
		noLoan:          "no loan found for member",
		withoutSchedule: "no collection schedule for loan",
		0:               "missing member_id",
	}
	if len(res.Skipped) != len(want) {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	for _, sk := range res.Skipped {
		if want[sk.MemberID] != sk.Reason {
			t.Errorf("member %d reason = %q, want %q", sk.MemberID, sk.Reason, want[sk.MemberID])
		}
	}
	if len(f.store.Denominations()) != 0 {
		t.Error("batch without denomination stored one")
	}
}

func TestPayBatchReportsUnapplied(t *testing.T) {
	f := newFixture()
	s := f.collections()

	res, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection: []CollectionItem{{MemberID: f.memberA, Amount: d("260")}},
	})
	if err != nil {
		t.Fatalf("PayBatch: %v", err)
	}
	got := res.Succeeded[0]
	if !got.Applied.Equal(d("200")) || !got.Unapplied.Equal(d("60")) {
		t.Errorf("applied %s unapplied %s", got.Applied, got.Unapplied)
	}
	if got.WeeksPaid != 2 {
		t.Errorf("weeks paid = %d", got.WeeksPaid)
	}
}

func TestPayBatchRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture()
	f.store.FailOn["CreateDenomination"] = errors.New("disk full")
	s := f.collections()

	_, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection:   []CollectionItem{{MemberID: f.memberA, Amount: d("100")}},
		Denomination: models.NoteCounts{"100": d("1")},
	})

	var serr *StoreError
	if !errors.As(err, &serr) || serr.Message != "Payment failed" {
		t.Fatalf("err = %v, want StoreError Payment failed", err)
	}
	for _, inst := range f.store.Installments(f.loanA) {
		if inst.Status != models.InstallmentStatusPending || inst.BatchID != nil {
			t.Errorf("week %d not rolled back: %+v", inst.WeekNo, inst)
		}
	}
}

func TestMembersDue(t *testing.T) {
	f := newFixture()
	f.store.AddMember(models.Member{Name: "No loan", CenterID: f.centerID})
	s := f.collections()

	if _, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection: []CollectionItem{{MemberID: f.memberB, Amount: d("200")}},
	}); err != nil {
		t.Fatal(err)
	}

	due, err := s.MembersDue(context.Background(), f.centerID)
	if err != nil {
		t.Fatalf("MembersDue: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %+v, want two members with loans", due)
	}

	a := due[0]
	if a.MemberID != f.memberA || a.LoanID != f.loanA || a.Name != "Lakshmi" {
		t.Errorf("first row = %+v", a)
	}
	if a.WeekNo == nil || *a.WeekNo != 1 || !a.WeeklyAmount.Equal(d("100")) {
		t.Errorf("member A next week = %v amount %s", a.WeekNo, a.WeeklyAmount)
	}
	if a.CollectionDate == nil || a.CollectionDate.String() != "2024-03-11" {
		t.Errorf("member A date = %v", a.CollectionDate)
	}

	b := due[1]
	if b.WeekNo != nil || b.CollectionDate != nil || !b.WeeklyAmount.IsZero() {
		t.Errorf("fully paid member = %+v", b)
	}
}

func TestSaveSchedule(t *testing.T) {
	f := newFixture()
	s := f.collections()

	_, err := s.SaveSchedule(context.Background(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("empty rows err = %v", err)
	}

	rows := []models.Installment{
		{LoanID: f.loanA, WeekNo: 2, ExpectedAmount: d("120"), CollectionDate: models.NewDate(testNow)},
		{LoanID: f.loanA, WeekNo: 3, ExpectedAmount: d("100")},
	}
	if _, err := s.SaveSchedule(context.Background(), rows); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}

	got := f.store.Installments(f.loanA)
	if len(got) != 3 {
		t.Fatalf("installments = %d, want 3", len(got))
	}
	if !got[1].ExpectedAmount.Equal(d("120")) {
		t.Errorf("week 2 expected = %s, want 120", got[1].ExpectedAmount)
	}
	if got[2].Status != models.InstallmentStatusPending {
		t.Errorf("new week status = %q", got[2].Status)
	}

	dup := []models.Installment{{LoanID: f.loanA, WeekNo: 4}, {LoanID: f.loanA, WeekNo: 4}}
	if _, err := s.SaveSchedule(context.Background(), dup); !errors.As(err, &verr) {
		t.Errorf("duplicate week err = %v", err)
	}
}

func TestSaveScheduleKeepsCollectedWeeks(t *testing.T) {
	f := newFixture()
	s := f.collections()

	if _, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection: []CollectionItem{{MemberID: f.memberA, Amount: d("100")}},
	}); err != nil {
		t.Fatal(err)
	}

	rows := []models.Installment{{LoanID: f.loanA, WeekNo: 1, ExpectedAmount: d("110"), CollectionDate: models.NewDate(testNow)}}
	if _, err := s.SaveSchedule(context.Background(), rows); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}

	week1 := f.store.Installments(f.loanA)[0]
	if week1.Status != models.InstallmentStatusPaid || !week1.PaidAmount.Equal(d("100")) {
		t.Errorf("re-saved week reopened: status=%s paid=%s", week1.Status, week1.PaidAmount)
	}
	if week1.PaidAt == nil || week1.BatchID == nil {
		t.Errorf("re-saved week lost its batch: %+v", week1)
	}
	if !week1.ExpectedAmount.Equal(d("110")) {
		t.Errorf("expected amount = %s, want 110", week1.ExpectedAmount)
	}
}

func TestDailyReports(t *testing.T) {
	f := newFixture()
	s := f.collections()

	if _, err := s.PayBatch(context.Background(), PayBatchRequest{
		Collection: []CollectionItem{{MemberID: f.memberA, Amount: d("60")}},
	}); err != nil {
		t.Fatal(err)
	}

	daily, err := s.DailyCollections(context.Background())
	if err != nil {
		t.Fatalf("DailyCollections: %v", err)
	}
	if len(daily) != 1 || daily[0].CenterName != "Anna Nagar" || daily[0].MemberName != "Lakshmi" || !daily[0].Amount.Equal(d("60")) {
		t.Errorf("daily = %+v", daily)
	}

	total, err := s.DailyTotal(context.Background(), "")
	if err != nil {
		t.Fatalf("DailyTotal: %v", err)
	}
	if total.Date != "2024-03-11" || !total.TotalAmount.Equal(d("60")) || total.Payments != 1 {
		t.Errorf("total = %+v", total)
	}

	other, err := s.DailyTotal(context.Background(), "2024-03-18")
	if err != nil {
		t.Fatal(err)
	}
	if !other.TotalAmount.IsZero() {
		t.Errorf("next week total = %s, want 0", other.TotalAmount)
	}

	var verr *ValidationError
	if _, err := s.DailyTotal(context.Background(), "11/03/2024"); !errors.As(err, &verr) {
		t.Errorf("bad date err = %v", err)
	}

	unpaid, err := s.UnpaidDueToday(context.Background())
	if err != nil {
		t.Fatalf("UnpaidDueToday: %v", err)
	}
	if len(unpaid) != 2 {
		t.Fatalf("unpaid = %+v", unpaid)
	}
	for _, u := range unpaid {
		switch u.MemberName {
		case "Lakshmi":
			if !u.AmountDue.Equal(d("40")) {
				t.Errorf("partial payer due = %s, want 40", u.AmountDue)
			}
		case "Meena":
			if !u.AmountDue.Equal(d("100")) || u.Mobile != "9000000002" {
				t.Errorf("unpaid member = %+v", u)
			}
		default:
			t.Errorf("unexpected row %+v", u)
		}
	}
}

func TestReportsWrapStoreErrors(t *testing.T) {
	f := newFixture()
	f.store.FailOn["ListInstallmentsByDate"] = errors.New("connection reset")
	s := f.collections()

	_, err := s.UnpaidDueToday(context.Background())
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Message != "Failed to fetch unpaid members" {
		t.Errorf("err = %v", err)
	}
	if !errors.Is(err, f.store.FailOn["ListInstallmentsByDate"]) {
		t.Error("cause not wrapped")
	}
}
