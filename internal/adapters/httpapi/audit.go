package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
)

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	filter, ok := h.parseAuditFilter(w, r)
	if !ok {
		return
	}
	filter.Page = page

	result, err := h.svc.Audit.Page(filter)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) exportAudit(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseAuditFilter(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.Audit.All(filter)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := usecase.WriteAuditWorkbook(&buf, entries); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	filename := "audit-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", usecase.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) parseAuditFilter(w http.ResponseWriter, r *http.Request) (domain.AuditFilter, bool) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		EntityKind: domain.EntityKind(strings.ToUpper(strings.TrimSpace(q.Get("entidade")))),
		Action:     domain.Action(strings.ToUpper(strings.TrimSpace(q.Get("acaoRealizada")))),
	}
	if raw := q.Get("entidadeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "entidadeId must be integer")
			return domain.AuditFilter{}, false
		}
		filter.EntityID = id
	}
	return filter, true
}
