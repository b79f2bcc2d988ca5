package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
)

const (
	maxJSONBodySize      = 1 << 20
	maxMultipartBodySize = usecase.MaxPhotoSizeBytes + maxJSONBodySize
)

// Services are the use cases the HTTP surface is served from.
type Services struct {
	Manager  *usecase.Manager
	Intake   *usecase.IntakeService
	Audit    *usecase.AuditService
	Photos   *usecase.PhotoService
	Auth     *usecase.AuthService
	Payloads *usecase.PayloadValidator
}

type Options struct {
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

type Handler struct {
	svc     Services
	origins []string
	log     logrus.FieldLogger
}

func NewHandler(svc Services, opts Options) *Handler {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, origins: opts.AllowedOrigins, log: opts.Log}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	if len(h.origins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: h.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		}).Handler)
	}

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)

		pr.Get("/companies", h.listCompanies)
		pr.Post("/companies", h.createCompany)
		pr.Get("/companies/{id}", h.getCompany)
		pr.Delete("/companies/{id}", h.deleteCompany)
		pr.Put("/companies/{id}/status", h.updateCompanyStatus)

		pr.Get("/correspondences", h.listCorrespondences)
		pr.Post("/correspondences", h.createCorrespondence)
		pr.Get("/correspondences/photos/{name}", h.getPhoto)
		pr.Get("/correspondences/{id}", h.getCorrespondence)
		pr.Put("/correspondences/{id}", h.updateCorrespondence)
		pr.Delete("/correspondences/{id}", h.deleteCorrespondence)

		pr.Get("/audit", h.listAudit)
		pr.Get("/audit/export.xlsx", h.exportAudit)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				h.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			h.log.WithError(err).Error("authenticate api key")
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := usecase.WithActor(r.Context(), apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

// handleDomainError writes the status for err. Unexpected errors are logged
// and answered with a generic body.
func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTransport):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "id must be integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) parsePage(w http.ResponseWriter, r *http.Request) (domain.PageRequest, bool) {
	q := r.URL.Query()
	req := domain.PageRequest{
		SortBy:    q.Get("sortBy"),
		SortOrder: domain.SortOrder(q.Get("sortOrder")),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &req.Number}, {"size", &req.Size}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			h.writeError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
			return domain.PageRequest{}, false
		}
		*p.dst = v
	}
	return req, true
}

// readJSONBody reads at most maxJSONBodySize bytes of a single JSON document.
func (h *Handler) readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return nil, false
	}
	return body, true
}

func decodeStrict(body []byte, dst any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid json body")
	}
	if err := ensureEOF(decoder); err != nil {
		return domain.NewValidationError("body", "invalid json body")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		h.log.WithError(err).Error("encode json response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.log.WithError(err).Debug("write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
