package remotestore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/mailroom/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
)

const apiKey = "remote-key"

type keyRepo struct{}

func (keyRepo) FindByTokenHash(_ context.Context, hash string) (domain.APIKey, error) {
	if hash == usecase.HashToken(apiKey) {
		return domain.APIKey{TokenHash: hash, Name: "remote", Active: true}, nil
	}
	return domain.APIKey{}, domain.ErrNotFound
}

func (keyRepo) Upsert(context.Context, domain.APIKey) error { return nil }
func (keyRepo) TouchLastUsed(context.Context, string, time.Time) error { return nil }
func (keyRepo) Deactivate(context.Context, string) error { return nil }
func (keyRepo) List(context.Context) ([]domain.APIKey, error) { return nil, nil }

func newServer(t *testing.T) (*httptest.Server, *usecase.Manager) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	manager := usecase.NewManager(usecase.WithLogger(log))
	payloads, err := usecase.NewPayloadValidator()
	require.NoError(t, err)

	h := httpapi.NewHandler(httpapi.Services{
		Manager:  manager,
		Intake:   usecase.NewIntakeService(manager, nil, nil, usecase.IntakeOptions{}, log),
		Audit:    usecase.NewAuditService(manager),
		Auth:     usecase.NewAuthService(keyRepo{}),
		Payloads: payloads,
	}, httpapi.Options{Log: log})

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, manager
}

func TestClientCompanyRoundTrip(t *testing.T) {
	srv, manager := newServer(t)
	client := NewClient(srv.URL+"/", apiKey)
	ctx := context.Background()

	created, err := client.CreateCompany(ctx, domain.NewCompany{Name: "Acme", Email: "desk@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", created.Name)
	assert.NotZero(t, created.ID)

	status := "SUSPENDED"
	updated, err := client.UpdateCompanyStatus(ctx, created.ID, domain.CompanyStatusPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "SUSPENDED", updated.Status)

	deleted, err := client.DeleteCompany(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = client.DeleteCompany(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Len(t, manager.AuditEntries(), 3)
}

func TestClientListCompaniesWalksPages(t *testing.T) {
	srv, manager := newServer(t)
	ctx := context.Background()
	for i := range listingPageSize + 5 {
		_, err := manager.CreateCompany(ctx, domain.NewCompany{Name: "Company " + string(rune('A'+i%26))})
		require.NoError(t, err)
	}

	companies, err := NewClient(srv.URL, apiKey).ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, listingPageSize+5)
	assert.Equal(t, int64(1), companies[0].ID)
	assert.Equal(t, int64(listingPageSize+5), companies[len(companies)-1].ID)
}

func TestClientCorrespondenceLifecycle(t *testing.T) {
	srv, _ := newServer(t)
	client := NewClient(srv.URL, apiKey)
	ctx := context.Background()

	corr, err := client.CreateCorrespondence(ctx, domain.NewCorrespondence{Sender: "John", CompanyName: "Acme", Status: domain.StatusReceived})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, corr.Status)

	updated, err := client.UpdateCorrespondence(ctx, corr.ID, CorrespondenceUpdate{Status: domain.StatusWithdrawn})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWithdrawn, updated.Status)

	page, err := client.CorrespondencesPage(ctx, domain.PageRequest{}, domain.StatusWithdrawn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalElements)

	entries, err := client.AuditEntries(ctx, domain.AuditFilter{EntityKind: domain.EntityCorrespondence})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionCreate, entries[0].Action)
	assert.Equal(t, domain.ActionUpdate, entries[1].Action)
	assert.Equal(t, "remote", entries[1].Actor)

	deleted, err := client.DeleteCorrespondence(ctx, corr.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestClientIntakeWithoutStatus(t *testing.T) {
	srv, _ := newServer(t)
	corr, err := NewClient(srv.URL, apiKey).CreateCorrespondence(context.Background(), domain.NewCorrespondence{Sender: "John", CompanyName: "Nobody"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, corr.Status)
}

func TestClientErrorsAreTransportErrors(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, err := NewClient(srv.URL, apiKey).UpdateCorrespondence(ctx, 99, CorrespondenceUpdate{Status: domain.StatusNotified})
	var terr *domain.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = NewClient(srv.URL, apiKey).CreateCompany(ctx, domain.NewCompany{Name: ""})
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewClient(srv.URL, "wrong").ListCompanies(ctx)
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusUnauthorized, terr.StatusCode)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, apiKey).ListCompanies(context.Background())
	var terr *domain.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.StatusCode)
	assert.Equal(t, "list companies", terr.Op)
}

func TestClientUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, apiKey).AuditPage(context.Background(), domain.AuditFilter{})
	assert.ErrorIs(t, err, domain.ErrTransport)
}
