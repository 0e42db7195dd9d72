package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"loancollect/utils"
)

// DayRolloverService reopens centers left closed from a previous day.
type DayRolloverService struct {
	centers *CenterService
	cron    *cron.Cron
	expr    string
	timeout time.Duration
}

// NewDayRolloverService schedules the rollover with a standard five field
// cron expression evaluated in UTC.
func NewDayRolloverService(centers *CenterService, expr string) (*DayRolloverService, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", expr, err)
	}

	s := &DayRolloverService{
		centers: centers,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		expr:    expr,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(expr, s.run); err != nil {
		return nil, fmt.Errorf("schedule rollover: %w", err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *DayRolloverService) Start() {
	utils.LogInfo("Day rollover scheduled (%s UTC)", s.expr)
	s.cron.Start()
}

// Stop waits for a running rollover to finish.
func (s *DayRolloverService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *DayRolloverService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		utils.LogError("Day rollover failed: %v", err)
	}
}

// RunOnce reopens stale centers immediately and returns how many changed.
func (s *DayRolloverService) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.centers.ReopenStale(ctx)
	utils.LogOperation("day rollover", start, err)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		utils.LogInfo("Reopened %d centers closed on a previous day", n)
	}
	return n, nil
}
