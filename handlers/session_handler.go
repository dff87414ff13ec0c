package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/teamtrack/teamtrack/middleware"
	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SessionHandler struct {
	sessionService services.SessionService
	exportService  services.ExportService
}

func NewSessionHandler(sessionService services.SessionService, exportService services.ExportService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		exportService:  exportService,
	}
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.CreateSessionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, err := h.sessionService.Create(r.Context(), input, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.UpdateSessionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, err := h.sessionService.Update(r.Context(), sessionID, input, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.sessionService.Delete(r.Context(), sessionID, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) GetSessionByID(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	session, err := h.sessionService.GetByID(r.Context(), sessionID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListSessions returns the sessions of every team the caller belongs to, each
// filtered to what the caller may see.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	sessions, err := h.sessionService.ListForViewer(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"sessions": sessions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type attendanceInput struct {
	Present bool `json:"present"`
}

func (h *SessionHandler) SetAttending(w http.ResponseWriter, r *http.Request) {
	h.ownAttendance(w, r, h.sessionService.SetAttending)
}

func (h *SessionHandler) SetAvailable(w http.ResponseWriter, r *http.Request) {
	h.ownAttendance(w, r, h.sessionService.SetAvailable)
}

func (h *SessionHandler) ownAttendance(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, sessionID int, present bool, currentUserID int) (*models.Session, error),
) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input attendanceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, err := action(r.Context(), sessionID, input.Present, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PickTeam is the captain's fixture selection: mark any member in or out of
// the attending set.
func (h *SessionHandler) PickTeam(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	memberID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input attendanceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, err := h.sessionService.PickTeam(r.Context(), sessionID, memberID, input.Present, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetRoster returns the attending set resolved into profiles. Captains and
// admins only.
func (h *SessionHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	session, team, members, err := h.sessionService.AttendanceRoster(r.Context(), sessionID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"session": session,
		"team":    team,
		"members": members,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportRegister streams the attendance register as an xlsx download. The
// workbook is rendered into memory first so a mid-render failure still
// produces a clean error response.
func (h *SessionHandler) ExportRegister(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	session, team, members, err := h.sessionService.AttendanceRoster(r.Context(), sessionID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if len(members) == 0 {
		mapServiceErrorToHTTP(w, r, services.ErrNoAttendingMembers)
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteRegister(&buf, session, team, members); err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	filename := h.exportService.RegisterFilename(session, team)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		// Headers are already sent; all that is left is to log.
		slog.Default().ErrorContext(r.Context(), "failed to stream register", slog.Any("error", err))
	}
}
