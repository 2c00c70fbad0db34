package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
	"github.com/BrandonDHaskell/doorgate/internal/slack"
)

type Dependencies struct {
	Logger            *slog.Logger
	Addr              string
	Engine            *service.AuthDecisionEngine
	Watchdog          *service.HealthWatchdog
	VerificationToken string
}

type Server struct {
	httpServer        *http.Server
	logger            *slog.Logger
	engine            *service.AuthDecisionEngine
	watchdog          *service.HealthWatchdog
	verificationToken string
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:            d.Logger,
		engine:            d.Engine,
		watchdog:          d.Watchdog,
		verificationToken: d.VerificationToken,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoveryMiddleware(s.logger))
	r.Use(bodyLimitMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)

	r.Get("/open", s.handleOpen)
	r.Post("/open", s.handleOpen)
	r.Post("/interactive-message", s.handleInteractiveMessage)

	r.Get("/opener-alive", s.handleOpenerAlive)
	r.Post("/opener-alive", s.handleOpenerAlive)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<h2>The door gateway is running</h2>" +
		"<p>See the README to configure the Slack app and the gateway.</p>"))
}

// handleOpen serves badge readers: door, rfiduid and token come from the
// query string or a form body.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid form body")
		return
	}

	resp, err := s.engine.HandleScan(r.Context(), types.ScanRequest{
		DoorID:   r.Form.Get("door"),
		RawBadge: r.Form.Get("rfiduid"),
		Token:    r.Form.Get("token"),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		case errors.Is(err, service.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
		case errors.Is(err, service.ErrThrottled):
			writeError(w, http.StatusBadRequest, codeThrottled, err.Error())
		default:
			s.logger.Error("scan failed", "error", err, "request_id", requestID(r.Context()))
			writeInternalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleInteractiveMessage receives Slack button presses. The reply body
// replaces the original message in the user's chat.
func (s *Server) handleInteractiveMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid form body")
		return
	}

	req, err := slack.ParseInteraction(r.PostForm.Get("payload"), s.verificationToken)
	if err != nil {
		switch {
		case errors.Is(err, slack.ErrVerificationToken):
			writeError(w, http.StatusForbidden, codeForbidden, "slack verification failed")
		default:
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid payload")
		}
		return
	}

	resp, err := s.engine.HandleAction(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActionCount):
			writeError(w, http.StatusForbidden, codeForbidden, service.ErrActionCount.Error())
		case errors.Is(err, service.ErrSignature):
			writeError(w, http.StatusBadRequest, codeVerification, service.ErrSignature.Error())
		case errors.Is(err, service.ErrUnknownAction):
			writeError(w, http.StatusBadRequest, codeUnknownAction, service.ErrUnknownAction.Error())
		default:
			s.logger.Error("interaction failed", "error", err, "request_id", requestID(r.Context()))
			writeInternalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenerAlive(w http.ResponseWriter, r *http.Request) {
	resp, err := s.watchdog.Heartbeat(r.Context(), types.HeartbeatRequest{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.logger.Error("heartbeat failed", "error", err)
		writeInternalError(w)
		return
	}

	if wantsProtobuf(r) {
		writeProto(w, http.StatusOK, heartbeatResponseToProto(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status        string    `json:"status"`
	Opener        string    `json:"opener"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	opener := "healthy"
	if !s.watchdog.Healthy() {
		opener = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Opener:        opener,
		LastHeartbeat: s.watchdog.LastHeartbeat().UTC(),
	})
}
