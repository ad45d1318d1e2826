package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/auth"
	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/service"
)

// Redirect targets handed to the browser.
const (
	AppPath       = "/app"
	NotFoundPath  = "/404.html"
	ExpiredPath   = "/expired.html"
	NoCreditsPath = "/app/nocredits.html"
	ErrorPath     = "/app/error.html"
)

// credentials is the body of the login and create-account forms.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// APIHandler serves the four JSON commands.
//
//   - Login          → check credentials, set the session cookie
//   - CreateAccount  → register, set the session cookie
//   - AddCredits     → grant the top-up to the session's user
//   - GenerateImage  → charge, call the provider, refund on failure
type APIHandler struct {
	accounts     *service.AccountService
	images       *service.ImageService
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

// NewAPIHandler creates an APIHandler. sessionTTL sets the cookie lifetime and
// should match the server-side session TTL.
func NewAPIHandler(
	accounts *service.AccountService,
	images *service.ImageService,
	sessionTTL time.Duration,
	secureCookie bool,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		accounts:     accounts,
		images:       images,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// Login handles POST /login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeResult(w, fail(""))
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			h.logger.Error("login failed", slog.String("error", err.Error()))
		}
		writeResult(w, fail(""))
		return
	}

	auth.SetSessionCookie(w, res.Token, h.sessionTTL, h.secureCookie)
	writeResult(w, Result{Text: textSuccess, Redirect: AppPath})
}

// CreateAccount handles POST /create.
func (h *APIHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeResult(w, fail(""))
		return
	}

	res, err := h.accounts.CreateAccount(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, apperror.ErrValidation) && !errors.Is(err, apperror.ErrConflict) {
			h.logger.Error("account creation failed", slog.String("error", err.Error()))
		}
		writeResult(w, fail(""))
		return
	}

	auth.SetSessionCookie(w, res.Token, h.sessionTTL, h.secureCookie)
	writeResult(w, Result{Text: textSuccess, Redirect: AppPath})
}

// AddCredits handles POST /addcredits. The body is ignored.
func (h *APIHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accounts.AddCredits(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			h.logger.Error("adding credits failed", slog.String("error", err.Error()))
		}
		writeResult(w, fail(ExpiredPath))
		return
	}

	writeResult(w, Result{Text: textSuccess, Redirect: AppPath}.withCredits(balance))
}

// GenerateImage handles POST /data.
//
// The failure redirect tells the browser where to go:
//
//	no session       → /expired.html
//	no credits       → /app/nocredits.html
//	provider failure → /app/error.html
//	bad parameters   → no redirect, nothing charged
func (h *APIHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req model.ImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeResult(w, fail(""))
		return
	}

	res, err := h.images.Generate(r.Context(), auth.TokenFromRequest(r), req)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			writeResult(w, fail(""))
		case errors.Is(err, apperror.ErrUnauthorized):
			writeResult(w, fail(ExpiredPath))
		case errors.Is(err, apperror.ErrInsufficientCredits):
			writeResult(w, fail(NoCreditsPath))
		case errors.Is(err, apperror.ErrProvider):
			writeResult(w, fail(ErrorPath))
		default:
			h.logger.Error("image generation failed", slog.String("error", err.Error()))
			writeResult(w, fail(ErrorPath))
		}
		return
	}

	writeResult(w, Result{Text: textSuccess, Image: res.ImageURL}.withCredits(res.Credits))
}
