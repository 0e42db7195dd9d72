package services

import (
	"context"
	"strings"

	"loancollect/database"
	"loancollect/models"
)

// SaveScheduleRequest is the body of POST /api/schedule/save
type SaveScheduleRequest struct {
	CenterID uint   `json:"centerId" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Day      string `json:"day" validate:"required,max=20"`
	Week     int    `json:"week" validate:"required,gt=0"`
}

// ScheduleService stores planned collection days
type ScheduleService struct {
	store database.Store
}

func NewScheduleService(store database.Store) *ScheduleService {
	return &ScheduleService{store: store}
}

// Save records a planned collection day for a center.
func (s *ScheduleService) Save(ctx context.Context, req SaveScheduleRequest) (*models.ScheduleMarker, error) {
	date, err := models.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, newValidationError("Invalid date, expected YYYY-MM-DD")
	}

	marker := &models.ScheduleMarker{
		CenterID:     req.CenterID,
		ScheduleDate: date,
		DayName:      strings.TrimSpace(req.Day),
		WeekNumber:   req.Week,
	}
	if err := s.store.CreateScheduleMarker(ctx, marker); err != nil {
		return nil, newStoreError("save schedule marker", "Failed to save schedule", err)
	}
	return marker, nil
}
