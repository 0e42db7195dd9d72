package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"loancollect/services"
)

// AuthController handles operator sign in
type AuthController struct {
	userService *services.UserService
}

// SignInRequest is the body of POST /api/login
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewAuthController creates an AuthController over the user service
func NewAuthController(userService *services.UserService) *AuthController {
	return &AuthController{userService: userService}
}

// RegisterRoutes mounts the public login route
func (c *AuthController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/login", c.SignIn).Methods(http.MethodPost)
}

// SignIn checks operator credentials and returns their identity with a token
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	// Decode the credentials
	var req SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Blocked accounts are refused before the password is checked
	result, err := c.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
