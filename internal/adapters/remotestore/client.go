package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

const (
	defaultTimeout  = 15 * time.Second
	listingPageSize = 200
	maxErrorBody    = 4096
)

// Client talks to a mailroom HTTP surface. Every failure, whether the request
// never completed or the server answered non-2xx, is a *domain.TransportError.
// For 400 and 404 answers the wrapped error also matches domain.ErrValidation
// or domain.ErrNotFound.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type CorrespondenceUpdate struct {
	Status      domain.Status `json:"statusCorresp"`
	Sender      *string       `json:"remetente,omitempty"`
	CompanyName *string       `json:"nomeEmpresaConexa,omitempty"`
	NotifiedAt  *time.Time    `json:"dataAvisoConexa,omitempty"`
	PhotoRef    *string       `json:"fotoCorrespondencia,omitempty"`
}

func (c *Client) CompaniesPage(ctx context.Context, page domain.PageRequest, search string) (domain.Page[domain.Company], error) {
	q := pageQuery(page)
	if search != "" {
		q.Set("search", search)
	}
	var out domain.Page[domain.Company]
	err := c.do(ctx, "list companies", http.MethodGet, "/companies", q, nil, &out)
	return out, err
}

// ListCompanies walks every page of the company listing.
func (c *Client) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	return collect(func(n int) (domain.Page[domain.Company], error) {
		return c.CompaniesPage(ctx, domain.PageRequest{Number: n, Size: listingPageSize, SortBy: "id", SortOrder: domain.SortAsc}, "")
	})
}

func (c *Client) CreateCompany(ctx context.Context, in domain.NewCompany) (domain.Company, error) {
	body := map[string]string{"nomeEmpresa": in.Name}
	for k, v := range map[string]string{
		"remetente":     in.SenderAlias,
		"logo":          in.LogoRef,
		"email":         in.Email,
		"statusEmpresa": in.Status,
		"situacao":      in.Situation,
		"mensagem":      in.Message,
	} {
		if v != "" {
			body[k] = v
		}
	}
	var out domain.Company
	err := c.do(ctx, "create company", http.MethodPost, "/companies", nil, body, &out)
	return out, err
}

func (c *Client) DeleteCompany(ctx context.Context, id int64) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	err := c.do(ctx, "delete company", http.MethodDelete, "/companies/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out.Deleted, err
}

func (c *Client) UpdateCompanyStatus(ctx context.Context, id int64, patch domain.CompanyStatusPatch) (domain.Company, error) {
	q := url.Values{}
	if patch.Status != nil {
		q.Set("statusEmpresa", *patch.Status)
	}
	if patch.Situation != nil {
		q.Set("situacao", *patch.Situation)
	}
	if patch.Message != nil {
		q.Set("mensagem", *patch.Message)
	}
	var out domain.Company
	err := c.do(ctx, "update company status", http.MethodPut, "/companies/"+strconv.FormatInt(id, 10)+"/status", q, nil, &out)
	return out, err
}

func (c *Client) CorrespondencesPage(ctx context.Context, page domain.PageRequest, status domain.Status) (domain.Page[domain.Correspondence], error) {
	q := pageQuery(page)
	if status != "" {
		q.Set("status", string(status))
	}
	var out domain.Page[domain.Correspondence]
	err := c.do(ctx, "list correspondences", http.MethodGet, "/correspondences", q, nil, &out)
	return out, err
}

// CreateCorrespondence posts the record as given. Leaving Status empty lets
// the server run intake and pick the status from the destination company.
func (c *Client) CreateCorrespondence(ctx context.Context, in domain.NewCorrespondence) (domain.Correspondence, error) {
	body := struct {
		Sender      string        `json:"remetente"`
		CompanyName string        `json:"nomeEmpresaConexa,omitempty"`
		ReceivedAt  *time.Time    `json:"dataRecebimento,omitempty"`
		NotifiedAt  *time.Time    `json:"dataAvisoConexa,omitempty"`
		PhotoRef    string        `json:"fotoCorrespondencia,omitempty"`
		Status      domain.Status `json:"statusCorresp,omitempty"`
	}{
		Sender:      in.Sender,
		CompanyName: in.CompanyName,
		NotifiedAt:  in.NotifiedAt,
		PhotoRef:    in.PhotoRef,
		Status:      in.Status,
	}
	if !in.ReceivedAt.IsZero() {
		body.ReceivedAt = &in.ReceivedAt
	}
	var out domain.Correspondence
	err := c.do(ctx, "create correspondence", http.MethodPost, "/correspondences", nil, body, &out)
	return out, err
}

func (c *Client) UpdateCorrespondence(ctx context.Context, id int64, update CorrespondenceUpdate) (domain.Correspondence, error) {
	var out domain.Correspondence
	err := c.do(ctx, "update correspondence", http.MethodPut, "/correspondences/"+strconv.FormatInt(id, 10), nil, update, &out)
	return out, err
}

func (c *Client) DeleteCorrespondence(ctx context.Context, id int64) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	err := c.do(ctx, "delete correspondence", http.MethodDelete, "/correspondences/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out.Deleted, err
}

func (c *Client) AuditPage(ctx context.Context, filter domain.AuditFilter) (domain.Page[domain.AuditEntry], error) {
	q := pageQuery(filter.Page)
	if filter.EntityKind != "" {
		q.Set("entidade", string(filter.EntityKind))
	}
	if filter.Action != "" {
		q.Set("acaoRealizada", string(filter.Action))
	}
	if filter.EntityID != 0 {
		q.Set("entidadeId", strconv.FormatInt(filter.EntityID, 10))
	}
	var out domain.Page[domain.AuditEntry]
	err := c.do(ctx, "list audit", http.MethodGet, "/audit", q, nil, &out)
	return out, err
}

// AuditEntries walks the audit feed in append order. The paging fields of
// filter are ignored.
func (c *Client) AuditEntries(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return collect(func(n int) (domain.Page[domain.AuditEntry], error) {
		f := filter
		f.Page = domain.PageRequest{Number: n, Size: listingPageSize, SortBy: "id", SortOrder: domain.SortAsc}
		return c.AuditPage(ctx, f)
	})
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: statusError(resp)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", msg, domain.ErrValidation)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	default:
		return errors.New(msg)
	}
}

func pageQuery(page domain.PageRequest) url.Values {
	q := url.Values{}
	if page.Number > 0 {
		q.Set("page", strconv.Itoa(page.Number))
	}
	if page.Size > 0 {
		q.Set("size", strconv.Itoa(page.Size))
	}
	if page.SortBy != "" {
		q.Set("sortBy", page.SortBy)
	}
	if page.SortOrder != "" {
		q.Set("sortOrder", string(page.SortOrder))
	}
	return q
}

func collect[T any](fetch func(n int) (domain.Page[T], error)) ([]T, error) {
	var all []T
	for n := 0; ; n++ {
		page, err := fetch(n)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Content...)
		if page.LastPage || len(page.Content) == 0 {
			return all, nil
		}
	}
}
