package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"loancollect/database"
	"loancollect/models"
	"loancollect/utils"
)

// CenterService manages center activation and the daily open/close cycle.
type CenterService struct {
	store    database.Store
	notifier Notifier
	now      func() time.Time
}

// NewCenterService creates a CenterService, notifier may be nil.
func NewCenterService(store database.Store, notifier Notifier) *CenterService {
	s := &CenterService{store: store, now: time.Now}
	// a typed nil *EmailService must not end up as a non-nil interface
	if n, ok := notifier.(*EmailService); !ok || n != nil {
		s.notifier = notifier
	}
	return s
}

// List returns all centers, active and inactive, ordered by id.
func (s *CenterService) List(ctx context.Context) ([]models.Center, error) {
	centers, err := s.store.ListCenters(ctx, false)
	if err != nil {
		return nil, newStoreError("list centers", "Failed to fetch centers", err)
	}
	return centers, nil
}

// ListActive returns the active centers ordered by id.
func (s *CenterService) ListActive(ctx context.Context) ([]models.Center, error) {
	centers, err := s.store.ListCenters(ctx, true)
	if err != nil {
		return nil, newStoreError("list active centers", "Failed to fetch active centers", err)
	}
	return centers, nil
}

func (s *CenterService) mapUpdateError(id uint, op, message string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{Resource: "center", ID: id}
	}
	return newStoreError(op, message, err)
}

// Activate makes a center available for collection
func (s *CenterService) Activate(ctx context.Context, id uint) error {
	if err := s.store.SetCenterActive(ctx, id, true); err != nil {
		return s.mapUpdateError(id, "activate center", "Failed to activate center", err)
	}
	return nil
}

// Deactivate hides a center from the active list
func (s *CenterService) Deactivate(ctx context.Context, id uint) error {
	if err := s.store.SetCenterActive(ctx, id, false); err != nil {
		return s.mapUpdateError(id, "deactivate center", "Center deactivation failed", err)
	}
	return nil
}

// Open reopens a center for collection and clears its close date.
func (s *CenterService) Open(ctx context.Context, id uint) error {
	if err := s.store.SetCenterDayClosed(ctx, id, false, nil); err != nil {
		return s.mapUpdateError(id, "open center", "Failed to open center", err)
	}
	return nil
}

// DayClose marks the center closed for today and, when a notifier is set,
// sends the day's collection summary. A failed notification does not undo
// the close.
func (s *CenterService) DayClose(ctx context.Context, id uint) error {
	now := s.now().UTC()
	if err := s.store.SetCenterDayClosed(ctx, id, true, &now); err != nil {
		return s.mapUpdateError(id, "day close", "Day close failed", err)
	}

	if s.notifier == nil {
		return nil
	}
	report, err := s.dayCloseReport(ctx, id, models.NewDate(now))
	if err != nil {
		utils.LogError("build day close report for center %d: %v", id, err)
		return nil
	}
	if err := s.notifier.SendDayCloseReport(*report); err != nil {
		utils.LogError("send day close report for center %d: %v", id, err)
	}
	return nil
}

func (s *CenterService) dayCloseReport(ctx context.Context, id uint, date models.Date) (*DayCloseReport, error) {
	center, err := s.store.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListInstallmentsByDate(ctx, date, models.InstallmentStatusPaid)
	if err != nil {
		return nil, err
	}

	report := &DayCloseReport{
		CenterID:   center.ID,
		CenterName: center.Name,
		Date:       date,
		Collected:  decimal.Zero,
	}
	for _, row := range rows {
		if row.Loan.Member.CenterID != id {
			continue
		}
		report.Collected = report.Collected.Add(row.PaidAmount)
		report.Payments++
	}
	return report, nil
}

// ReopenStale reopens every center closed before today.
func (s *CenterService) ReopenStale(ctx context.Context) (int64, error) {
	today := models.NewDate(s.now())
	n, err := s.store.ReopenCentersClosedBefore(ctx, today.Time)
	if err != nil {
		return 0, newStoreError("reopen centers", "Failed to reopen centers", err)
	}
	return n, nil
}
