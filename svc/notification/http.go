package notification

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/sanitizer"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

const maxRequestBody = 1 << 20

// Response is the JSON envelope of every endpoint.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Meta  any          `json:"meta,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	// Fields maps each invalid input field to its messages.
	Fields map[string][]string `json:"fields,omitempty"`
}

// HTTPHandler exposes the service and owner administration over HTTP.
type HTTPHandler struct {
	svc     *Service
	configs *ConfigManager
	logger  *slog.Logger
}

type HTTPOption func(*HTTPHandler)

func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHTTPHandler(svc *Service, configs *ConfigManager, opts ...HTTPOption) *HTTPHandler {
	h := &HTTPHandler{svc: svc, configs: configs, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router:
//
//	POST  /notifications
//	GET   /notifications?status=&email=&limit=&offset=
//	GET   /notifications/stats
//	GET   /notifications/{id}
//	POST  /owners
//	GET   /owners/{owner}
//	PATCH /owners/{owner}
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.createNotification)
		r.Get("/", h.listNotifications)
		r.Get("/stats", h.stats)
		r.Get("/{id}", h.getNotification)
	})
	r.Route("/owners", func(r chi.Router) {
		r.Post("/", h.createOwner)
		r.Get("/{owner}", h.getOwner)
		r.Patch("/{owner}", h.updateOwner)
	})
	return r
}

func (h *HTTPHandler) createNotification(w http.ResponseWriter, r *http.Request) {
	var p CreateParams
	if !h.decode(w, r, &p) {
		return
	}
	n, err := h.svc.Create(r.Context(), p)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusCreated, Response{Data: n})
}

func (h *HTTPHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, lErr := intParam(q, "limit")
	offset, oErr := intParam(q, "offset")
	before, bErr := timeParam(q, "created_before")
	if err := errors.Join(lErr, oErr, bErr); err != nil {
		h.error(w, r, err)
		return
	}

	page, err := h.svc.List(r.Context(), ListParams{
		Status:        q.Get("status"),
		Email:         q.Get("email"),
		CreatedBefore: before,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusOK, Response{
		Data: page.Data,
		Meta: map[string]any{"total": page.Total, "limit": page.Limit, "offset": page.Offset},
	})
}

func (h *HTTPHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusOK, Response{Data: st})
}

func (h *HTTPHandler) getNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusOK, Response{Data: n})
}

func (h *HTTPHandler) createOwner(w http.ResponseWriter, r *http.Request) {
	var in ConfigInput
	if !h.decode(w, r, &in) {
		return
	}
	cfg, err := h.configs.Create(r.Context(), in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusCreated, Response{Data: redact(cfg)})
}

func (h *HTTPHandler) getOwner(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), ownerParam(r))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusOK, Response{Data: redact(cfg)})
}

func (h *HTTPHandler) updateOwner(w http.ResponseWriter, r *http.Request) {
	var patch ConfigPatch
	if !h.decode(w, r, &patch) {
		return
	}
	cfg, err := h.configs.Update(r.Context(), ownerParam(r), patch)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.json(w, http.StatusOK, Response{Data: redact(cfg)})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		h.json(w, http.StatusBadRequest, Response{Error: &ErrorDetail{
			Code:    "invalid_request",
			Message: "request body must be a valid JSON object",
		}})
		return false
	}
	return true
}

func (h *HTTPHandler) json(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", logger.Error(err))
	}
}

func (h *HTTPHandler) error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	detail := &ErrorDetail{Code: code, Message: err.Error()}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", logger.Error(err))
		detail.Message = http.StatusText(status)
	} else if verrs := validator.ExtractValidationErrors(err); verrs != nil {
		detail.Message = "request is invalid"
		detail.Fields = make(map[string][]string, len(verrs))
		for _, field := range verrs.Fields() {
			detail.Fields[field] = verrs.Get(field)
		}
		for _, e := range verrs {
			detail.Details = append(detail.Details, e.Error())
		}
	} else if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		detail.Message = "request is invalid"
		for _, e := range errs {
			detail.Details = append(detail.Details, e.Error())
		}
	}

	h.json(w, status, Response{Error: detail})
}

// classify maps domain errors to an HTTP status and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMessageTooLong),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrInvalidOwner),
		errors.Is(err, ErrUnknownChannel),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidListQuery):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrOwnerConfigNotFound), errors.Is(err, ErrNotificationNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrOwnerConfigDisabled):
		return http.StatusConflict, "owner_disabled"
	case errors.Is(err, ErrOwnerConfigExists):
		return http.StatusConflict, "owner_exists"
	case errors.Is(err, ErrNoChannelsConfigured):
		return http.StatusUnprocessableEntity, "no_channels"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *HTTPHandler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)),
		)
	})
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(ErrInvalidListQuery, errors.New(name+" must be an integer"))
	}
	return v, nil
}

// timeParam parses an RFC 3339 timestamp; an absent value is the zero time.
func timeParam(q url.Values, name string) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Join(ErrInvalidListQuery, errors.New(name+" must be an RFC 3339 timestamp"))
	}
	return v, nil
}

func ownerParam(r *http.Request) string {
	raw := chi.URLParam(r, "owner")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// redact hides channel secrets in API responses.
func redact(cfg *OwnerConfig) *OwnerConfig {
	out := cfg.Clone()
	if out.Credentials.Email != nil {
		out.Credentials.Email.APIKey = maskSecret(out.Credentials.Email.APIKey)
	}
	if out.Credentials.Telegram != nil {
		out.Credentials.Telegram.Token = maskSecret(out.Credentials.Telegram.Token)
	}
	return out
}

func maskSecret(s string) string {
	return sanitizer.MaskString(s, 2)
}
