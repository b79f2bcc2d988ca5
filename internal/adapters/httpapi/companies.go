package httpapi

import (
	"net/http"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
)

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.svc.Manager.ListCompanies(usecase.CompanyQuery{
		Search: r.URL.Query().Get("search"),
		Page:   page,
	}))
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	company, err := h.svc.Manager.Company(id)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, company)
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readJSONBody(w, r)
	if !ok {
		return
	}
	if err := h.svc.Payloads.Validate(usecase.PayloadCompany, "body", body); err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	var req createCompanyRequest
	if err := decodeStrict(body, &req); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	company, err := h.svc.Manager.CreateCompany(r.Context(), req.toDomain())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, company)
}

func (h *Handler) deleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	deleted := h.svc.Manager.DeleteCompany(r.Context(), id)
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// updateCompanyStatus takes the annotation fields from the query string;
// a parameter that is present, even empty, overwrites the stored value.
func (h *Handler) updateCompanyStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var patch domain.CompanyStatusPatch
	if q.Has("statusEmpresa") {
		v := q.Get("statusEmpresa")
		patch.Status = &v
	}
	if q.Has("situacao") {
		v := q.Get("situacao")
		patch.Situation = &v
	}
	if q.Has("mensagem") {
		v := q.Get("mensagem")
		patch.Message = &v
	}

	company, err := h.svc.Manager.UpdateCompanyStatus(r.Context(), id, patch)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, company)
}
