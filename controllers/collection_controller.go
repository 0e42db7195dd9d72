package controllers

import (
	"net/http"
	"strconv"

	"github.com/beevik/etree"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"loancollect/middleware"
	"loancollect/models"
	"loancollect/services"
	"loancollect/utils"
)

// CollectionController handles weekly schedules, payment batches and the daily reports
type CollectionController struct {
	collectionService *services.CollectionService
	validator         *validator.Validate
}

// SaveScheduleRowsRequest is the body of POST /api/collections/schedule
type SaveScheduleRowsRequest struct {
	Rows []models.Installment `json:"rows" validate:"dive"`
}

// ScheduleRowsResponse echoes the saved schedule rows
type ScheduleRowsResponse struct {
	Success bool                 `json:"success"`
	Data    []models.Installment `json:"data"`
}

// NewCollectionController creates a CollectionController
func NewCollectionController(collections *services.CollectionService) *CollectionController {
	return &CollectionController{
		collectionService: collections,
		validator:         newValidator(),
	}
}

// RegisterRoutes mounts the /api/collections routes
func (c *CollectionController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/collections/members/{centerId}", c.GetMembersDue).Methods(http.MethodGet)
	router.HandleFunc("/api/collections/schedule", c.SaveSchedule).Methods(http.MethodPost)
	router.HandleFunc("/api/collections/pay-batch", c.PayBatch).Methods(http.MethodPost)
	router.HandleFunc("/api/collections/daily", c.GetDailyCollections).Methods(http.MethodGet)
	router.HandleFunc("/api/collections/daily-total", c.GetDailyTotal).Methods(http.MethodGet)
	router.HandleFunc("/api/collections/unpaid-mobile", c.GetUnpaid).Methods(http.MethodGet)
}

// GetMembersDue returns each member's next pending week
func (c *CollectionController) GetMembersDue(w http.ResponseWriter, r *http.Request) {
	centerID, err := pathID(r, "centerId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid center ID")
		return
	}

	due, err := c.collectionService.MembersDue(r.Context(), centerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

// SaveSchedule upserts weekly schedule rows
func (c *CollectionController) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req SaveScheduleRowsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateRequest(c.validator, req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := c.collectionService.SaveSchedule(r.Context(), req.Rows)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduleRowsResponse{Success: true, Data: rows})
}

// PayBatch posts a center's collection together with its cash breakdown
func (c *CollectionController) PayBatch(w http.ResponseWriter, r *http.Request) {
	// Decode the batch
	var req services.PayBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate the amounts
	if err := validateRequest(c.validator, req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check the cash breakdown and apply the batch
	result, err := c.collectionService.PayBatch(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	// the operator is only known when tokens are enforced
	if claims, err := middleware.GetUserFromContext(r); err == nil {
		utils.LogInfo("batch %s posted by user %d (%s)", result.BatchID, claims.UserID, claims.Name)
	}
	writeJSON(w, http.StatusOK, result)
}

// GetDailyCollections lists today's paid installments
func (c *CollectionController) GetDailyCollections(w http.ResponseWriter, r *http.Request) {
	rows, err := c.collectionService.DailyCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetDailyTotal returns the paid total for ?date=YYYY-MM-DD, today by
// default. With ?format=xml the total is rendered as a printable bill.
func (c *CollectionController) GetDailyTotal(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	total, err := c.collectionService.DailyTotal(r.Context(), query.Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	if query.Get("format") == "xml" {
		writeDailyTotalXML(w, total)
		return
	}
	writeJSON(w, http.StatusOK, total)
}

// GetUnpaid lists today's installments that are not fully collected
func (c *CollectionController) GetUnpaid(w http.ResponseWriter, r *http.Request) {
	rows, err := c.collectionService.UnpaidDueToday(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// writeDailyTotalXML renders the daily total as a <bill> document
func writeDailyTotalXML(w http.ResponseWriter, total *services.DailyTotal) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	bill := doc.CreateElement("bill")
	bill.CreateAttr("date", total.Date)
	bill.CreateAttr("currency", "INR")
	bill.CreateElement("payments").SetText(strconv.Itoa(total.Payments))
	bill.CreateElement("total").SetText(total.TotalAmount.StringFixed(2))
	doc.Indent(2)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := doc.WriteTo(w); err != nil {
		utils.LogError("write daily total bill: %v", err)
	}
}
