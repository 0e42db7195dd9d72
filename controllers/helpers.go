package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"loancollect/services"
	"loancollect/utils"
)

// MessageResponse is the body of every failed request and of simple acknowledgements
type MessageResponse struct {
	Message string `json:"message"`
}

// SuccessResponse acknowledges a state change
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// decimals are compared as numbers by gte/gt
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return validate
}

// validateRequest validates a DTO and joins the failures into one message
func validateRequest(validate *validator.Validate, dto interface{}) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must not be less than %s", e.Field(), e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email", e.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return errors.New(strings.Join(messages, "; "))
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.LogError("encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// writeError maps a service error to its status code. Store failures are
// logged and only their public message is returned.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *services.ValidationError
		authErr       *services.AuthError
		notFoundErr   *services.NotFoundError
		storeErr      *services.StoreError
	)

	switch {
	case errors.As(err, &validationErr):
		writeMessage(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &authErr):
		writeMessage(w, authErr.Status, authErr.Message)
	case errors.As(err, &notFoundErr):
		resource := notFoundErr.Resource
		if resource != "" {
			resource = strings.ToUpper(resource[:1]) + resource[1:]
		}
		writeMessage(w, http.StatusNotFound, resource+" not found")
	case errors.As(err, &storeErr):
		utils.LogError("%v", storeErr)
		utils.GetMetrics().RecordError(storeErr.Op)
		writeMessage(w, http.StatusInternalServerError, storeErr.Message)
	default:
		utils.LogError("unhandled error: %v", err)
		utils.GetMetrics().RecordError("unknown")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// pathID reads a positive numeric path variable.
func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}
