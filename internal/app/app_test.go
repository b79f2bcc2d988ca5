package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

func testConfig(t *testing.T, dir string) Config {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	return Config{
		Addr:                "127.0.0.1:0",
		DBPath:              filepath.Join(dir, "mailroom.sqlite"),
		PhotoDir:            filepath.Join(dir, "photos"),
		Log:                 log,
		BootstrapAPIKey:     "boot-key",
		BootstrapKeyName:    "reception",
		AutoCreateCompanies: true,
		RefreshDelay:        10 * time.Millisecond,
	}
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return callWithKey(t, h, "boot-key", method, path, body)
}

func callWithKey(t *testing.T, h http.Handler, key, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	server, closer, err := NewServer(ctx, testConfig(t, dir))
	require.NoError(t, err)

	rec := call(t, server.Handler, http.MethodPost, "/correspondences", `{"remetente":"John","nomeEmpresaConexa":"Acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var corr domain.Correspondence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &corr))
	assert.Equal(t, domain.StatusNotified, corr.Status)

	rec = call(t, server.Handler, http.MethodPut, "/correspondences/1", `{"statusCorresp":"WITHDRAWN"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, closer.Close())

	server, closer, err = NewServer(ctx, testConfig(t, dir))
	require.NoError(t, err)
	defer closer.Close()

	rec = call(t, server.Handler, http.MethodGet, "/correspondences/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &corr))
	assert.Equal(t, domain.StatusWithdrawn, corr.Status)

	var audit domain.Page[domain.AuditEntry]
	rec = call(t, server.Handler, http.MethodGet, "/audit?sortBy=id&sortOrder=asc", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Len(t, audit.Content, 3)
	assert.Equal(t, domain.EntityCompany, audit.Content[0].EntityKind)
	assert.Equal(t, domain.ActionUpdate, audit.Content[2].Action)
	assert.Equal(t, "reception", audit.Content[2].Actor)

	rec = call(t, server.Handler, http.MethodPost, "/companies", `{"nomeEmpresa":"Globex"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var company domain.Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &company))
	assert.Equal(t, int64(2), company.ID, "ids continue after the persisted maximum")
}

func TestServerRejectsUnknownKey(t *testing.T) {
	server, closer, err := NewServer(context.Background(), testConfig(t, t.TempDir()))
	require.NoError(t, err)
	defer closer.Close()

	req := httptest.NewRequest(http.MethodGet, "/companies", nil)
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerRejectsBadSMTPConfig(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.SMTP.Host = "mail.test"
	_, _, err := NewServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestIssuedKeysAuthenticateUntilRevoked(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := testConfig(t, dir)

	server, closer, err := NewServer(ctx, cfg)
	require.NoError(t, err)
	defer closer.Close()

	keys, keysCloser, err := OpenKeys(ctx, cfg.DBPath, cfg.Log)
	require.NoError(t, err)
	defer keysCloser.Close()

	token, err := keys.Issue(ctx, "night-shift")
	require.NoError(t, err)

	rec := callWithKey(t, server.Handler, token, http.MethodPost, "/companies", `{"nomeEmpresa":"Initech"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var audit domain.Page[domain.AuditEntry]
	rec = call(t, server.Handler, http.MethodGet, "/audit", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Len(t, audit.Content, 1)
	assert.Equal(t, "night-shift", audit.Content[0].Actor)

	require.NoError(t, keys.Revoke(ctx, "night-shift"))
	rec = callWithKey(t, server.Handler, token, http.MethodGet, "/companies", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	listed, err := keys.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "night-shift", listed[0].Name)
	assert.False(t, listed[0].Active)
	assert.NotNil(t, listed[0].LastUsedAt)
	assert.Equal(t, "reception", listed[1].Name)
}

func TestCompanyRefreshNeedsUpstream(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	assert.Nil(t, newRefresher(Config{}, nil, log))

	r := newRefresher(Config{UpstreamURL: "http://upstream.test", RefreshDelay: time.Second}, nil, log)
	require.NotNil(t, r)
	require.NoError(t, r.Close())
}
