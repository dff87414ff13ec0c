package handlers

import (
	"net/http"

	"github.com/teamtrack/teamtrack/middleware"
	"github.com/teamtrack/teamtrack/services"
)

type AuthHandler struct {
	authService services.AuthService
	jwtSecret   string
}

func NewAuthHandler(authService services.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtSecret:   jwtSecret,
	}
}

// RequestCode issues a one-time sign-in code for a phone number. The response
// is the same whether or not the number is known, so the endpoint cannot be
// used to probe for registered users.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.authService.RequestCode(r.Context(), input.PhoneNumber); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusAccepted, jsonResponse{"status": "code sent"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// VerifySignIn exchanges a valid code for a bearer token and the resolved
// profile.
func (h *AuthHandler) VerifySignIn(w http.ResponseWriter, r *http.Request) {
	var input services.VerifyInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.authService.VerifySignIn(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	token, err := middleware.MintToken(h.jwtSecret, user.ID)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	response := jsonResponse{
		"token": token,
		"user":  user,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
