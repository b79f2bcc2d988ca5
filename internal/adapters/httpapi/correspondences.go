package httpapi

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
)

func (h *Handler) listCorrespondences(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	q := usecase.CorrespondenceQuery{Search: r.URL.Query().Get("search"), Page: page}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			h.handleDomainError(w, r, err)
			return
		}
		q.Status = status
	}
	h.writeJSON(w, http.StatusOK, h.svc.Manager.ListCorrespondences(q))
}

func (h *Handler) getCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	corr, err := h.svc.Manager.Correspondence(id)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, corr)
}

// createCorrespondence accepts either a JSON body or a multipart form with a
// "dados" JSON part and an optional "foto" file part. Without an explicit
// statusCorresp the intake service decides the status from the destination
// company.
func (h *Handler) createCorrespondence(w http.ResponseWriter, r *http.Request) {
	var (
		body  []byte
		photo io.Reader
		ok    bool
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var closeFn func()
		body, photo, closeFn, ok = h.readMultipartIntake(w, r)
		if !ok {
			return
		}
		defer closeFn()
	} else {
		body, ok = h.readJSONBody(w, r)
		if !ok {
			return
		}
	}

	if err := h.svc.Payloads.Validate(usecase.PayloadCorrespondence, "dados", body); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	var req createCorrespondenceRequest
	if err := decodeStrict(body, &req); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	if strings.TrimSpace(req.Status) == "" {
		in := usecase.IntakeRequest{Sender: req.Sender, CompanyName: req.CompanyName, Photo: photo}
		if req.ReceivedAt != nil {
			in.ReceivedAt = *req.ReceivedAt
		}
		res, err := h.svc.Intake.Receive(r.Context(), in)
		if err != nil {
			h.handleDomainError(w, r, err)
			return
		}
		if res.CompanyCreated {
			w.Header().Set("X-Company-Created", "true")
		}
		h.writeJSON(w, http.StatusCreated, res.Correspondence)
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	in := domain.NewCorrespondence{
		Sender:      req.Sender,
		CompanyName: req.CompanyName,
		NotifiedAt:  req.NotifiedAt,
		PhotoRef:    req.PhotoRef,
		Status:      status,
	}
	if req.ReceivedAt != nil {
		in.ReceivedAt = *req.ReceivedAt
	}
	if photo != nil {
		if h.svc.Photos == nil {
			h.handleDomainError(w, r, domain.NewValidationError("foto", "photo uploads are not enabled"))
			return
		}
		name, err := h.svc.Photos.Save(r.Context(), photo)
		if err != nil {
			h.handleDomainError(w, r, err)
			return
		}
		in.PhotoRef = name
	}

	corr, err := h.svc.Manager.CreateCorrespondence(r.Context(), in)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, corr)
}

func (h *Handler) readMultipartIntake(w http.ResponseWriter, r *http.Request) ([]byte, io.Reader, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBodySize)
	if err := r.ParseMultipartForm(maxMultipartBodySize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return nil, nil, nil, false
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return nil, nil, nil, false
	}
	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	var body []byte
	if v := form.Value["dados"]; len(v) > 0 {
		body = []byte(v[0])
	} else if files := form.File["dados"]; len(files) > 0 {
		data, err := readPart(files[0])
		if err != nil {
			cleanup()
			h.writeError(w, http.StatusBadRequest, "unreadable dados part")
			return nil, nil, nil, false
		}
		body = data
	} else {
		cleanup()
		h.writeError(w, http.StatusBadRequest, "dados: is required")
		return nil, nil, nil, false
	}

	var photo io.Reader
	if files := form.File["foto"]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			cleanup()
			h.writeError(w, http.StatusBadRequest, "unreadable foto part")
			return nil, nil, nil, false
		}
		photo = f
		cleanup = func() {
			_ = f.Close()
			_ = form.RemoveAll()
		}
	}
	return body, photo, cleanup, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxJSONBodySize))
}

func (h *Handler) updateCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	body, ok := h.readJSONBody(w, r)
	if !ok {
		return
	}
	var req updateCorrespondenceRequest
	if err := decodeStrict(body, &req); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	corr, err := h.svc.Manager.UpdateCorrespondenceStatus(r.Context(), id, status, req.patch())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, corr)
}

func (h *Handler) deleteCorrespondence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	deleted := h.svc.Manager.DeleteCorrespondence(r.Context(), id)
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) getPhoto(w http.ResponseWriter, r *http.Request) {
	if h.svc.Photos == nil {
		h.writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	name := chi.URLParam(r, "name")
	rc, contentType, err := h.svc.Photos.Open(r.Context(), name)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
