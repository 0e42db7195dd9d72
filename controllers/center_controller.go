package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"loancollect/services"
)

// CenterController serves center listing and the daily open/close cycle
type CenterController struct {
	centerService *services.CenterService
	memberService *services.MemberService
}

// NewCenterController creates a CenterController
func NewCenterController(centers *services.CenterService, members *services.MemberService) *CenterController {
	return &CenterController{
		centerService: centers,
		memberService: members,
	}
}

// RegisterRoutes mounts the center and member routes
func (c *CenterController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/centers", c.GetCenters).Methods(http.MethodGet)
	router.HandleFunc("/api/centers/active", c.GetActiveCenters).Methods(http.MethodGet)
	router.HandleFunc("/api/centers/{id}/activate", c.update(c.centerService.Activate, "Center activated")).Methods(http.MethodPut)
	router.HandleFunc("/api/centers/{id}/deactivate", c.update(c.centerService.Deactivate, "Center deactivated")).Methods(http.MethodPut)
	router.HandleFunc("/api/centers/{id}/open", c.update(c.centerService.Open, "Center opened")).Methods(http.MethodPut)
	router.HandleFunc("/api/centers/{id}/day-close", c.update(c.centerService.DayClose, "Day closed")).Methods(http.MethodPut)
	router.HandleFunc("/api/members/{centerId}", c.GetCreditedMembers).Methods(http.MethodGet)
}

// GetCenters returns every center ordered by id
func (c *CenterController) GetCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := c.centerService.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, centers)
}

// GetActiveCenters returns the centers open for collection
func (c *CenterController) GetActiveCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := c.centerService.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, centers)
}

// update builds a handler for one of the PUT /api/centers/{id}/... actions.
func (c *CenterController) update(action func(context.Context, uint) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid center ID")
			return
		}

		if err := action(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message})
	}
}

// GetCreditedMembers lists the members of a center with a credited loan
func (c *CenterController) GetCreditedMembers(w http.ResponseWriter, r *http.Request) {
	centerID, err := pathID(r, "centerId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid center ID")
		return
	}

	members, err := c.memberService.ListCredited(r.Context(), centerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
