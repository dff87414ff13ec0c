package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/teamtrack/teamtrack/middleware"
	"github.com/teamtrack/teamtrack/realtime"
	"github.com/teamtrack/teamtrack/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the frontend origin once it is deployed.
		return true
	},
}

type WebSocketHandler struct {
	hub         *realtime.Hub
	teamService services.TeamService
	userService services.UserService
	logger      *slog.Logger
}

func NewWebSocketHandler(
	hub *realtime.Hub,
	teamService services.TeamService,
	userService services.UserService,
	logger *slog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		teamService: teamService,
		userService: userService,
		logger:      logger,
	}
}

// ServeWs subscribes the caller to a team's event room. Only team members and
// admins may subscribe; the membership check runs before the upgrade so
// rejections are plain HTTP errors.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	user, err := h.userService.GetByID(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	team, err := h.teamService.GetTeamByID(r.Context(), teamID, false)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !team.HasMember(currentUserID) && !user.Admin {
		forbiddenResponse(w, r, services.ErrMembersOnly.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error to the client.
		h.logger.Error("websocket upgrade failed",
			slog.Int("team_id", teamID),
			slog.Any("error", err),
		)
		return
	}

	realtime.NewClient(h.hub, conn, teamID, h.logger)
	h.logger.Debug("websocket client connected",
		slog.Int("team_id", teamID),
		slog.Int("user_id", currentUserID),
	)
}
