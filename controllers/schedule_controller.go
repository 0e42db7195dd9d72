package controllers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"loancollect/models"
	"loancollect/services"
)

// ScheduleController records planned collection days
type ScheduleController struct {
	scheduleService *services.ScheduleService
	validator       *validator.Validate
}

// ScheduleSavedResponse is returned after a schedule marker is stored
type ScheduleSavedResponse struct {
	Message string                 `json:"message"`
	Data    *models.ScheduleMarker `json:"data"`
}

// NewScheduleController creates a ScheduleController
func NewScheduleController(schedules *services.ScheduleService) *ScheduleController {
	return &ScheduleController{
		scheduleService: schedules,
		validator:       newValidator(),
	}
}

// RegisterRoutes mounts POST /api/schedule/save
func (c *ScheduleController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/schedule/save", c.Save).Methods(http.MethodPost)
}

// Save records the collection day planned for a center
func (c *ScheduleController) Save(w http.ResponseWriter, r *http.Request) {
	var req services.SaveScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateRequest(c.validator, req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	marker, err := c.scheduleService.Save(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduleSavedResponse{Message: "Schedule saved successfully", Data: marker})
}
