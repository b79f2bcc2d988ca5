package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

func TestListCompaniesSearchSortAndPage(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	for _, name := range []string{"Globex", "acme", "Initech", "Acme Labs"} {
		_, err := m.CreateCompany(ctx, domain.NewCompany{Name: name})
		require.NoError(t, err)
	}

	page := m.ListCompanies(CompanyQuery{
		Search: "ACME",
		Page:   domain.PageRequest{SortBy: "nomeEmpresa", SortOrder: domain.SortAsc},
	})
	require.Len(t, page.Content, 2)
	assert.Equal(t, "acme", page.Content[0].Name)
	assert.Equal(t, "Acme Labs", page.Content[1].Name)
	assert.True(t, page.LastPage)

	page = m.ListCompanies(CompanyQuery{Page: domain.PageRequest{Size: 3}})
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(4), page.TotalElements)
	assert.Equal(t, int64(4), page.Content[0].ID)
}

func TestListCompaniesUnknownSortFallsBackToID(t *testing.T) {
	m := newTestManager()
	for _, name := range []string{"B", "A"} {
		_, err := m.CreateCompany(context.Background(), domain.NewCompany{Name: name})
		require.NoError(t, err)
	}
	page := m.ListCompanies(CompanyQuery{Page: domain.PageRequest{SortBy: "password", SortOrder: domain.SortAsc}})
	assert.Equal(t, int64(1), page.Content[0].ID)
}

func TestListCorrespondencesFilters(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	_, err := m.CreateCorrespondence(ctx, domain.NewCorrespondence{Sender: "John", CompanyName: "Acme"})
	require.NoError(t, err)
	_, err = m.CreateCorrespondence(ctx, domain.NewCorrespondence{Sender: "Mary", CompanyName: "Globex", Status: domain.StatusReturned})
	require.NoError(t, err)
	_, err = m.CreateCorrespondence(ctx, domain.NewCorrespondence{Sender: "Ann", CompanyName: "Acme", Status: domain.StatusReturned})
	require.NoError(t, err)

	page := m.ListCorrespondences(CorrespondenceQuery{Status: domain.StatusReturned})
	require.Len(t, page.Content, 2)

	page = m.ListCorrespondences(CorrespondenceQuery{
		Search: "acme",
		Page:   domain.PageRequest{SortBy: "remetente", SortOrder: domain.SortAsc},
	})
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Ann", page.Content[0].Sender)
	assert.Equal(t, "John", page.Content[1].Sender)
}

func TestListCorrespondencesEmptyPage(t *testing.T) {
	m := newTestManager()
	page := m.ListCorrespondences(CorrespondenceQuery{Page: domain.PageRequest{Number: 3}})
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
	assert.Equal(t, 0, page.TotalPages)
	assert.True(t, page.LastPage)
}

func TestFindCompanyByName(t *testing.T) {
	m := newTestManager()
	acme, err := m.CreateCompany(context.Background(), domain.NewCompany{Name: "Acme", SenderAlias: "ACME Corp"})
	require.NoError(t, err)

	got, ok := m.FindCompanyByName("  acme ")
	require.True(t, ok)
	assert.Equal(t, acme.ID, got.ID)

	got, ok = m.FindCompanyByName("acme corp")
	require.True(t, ok)
	assert.Equal(t, acme.ID, got.ID)

	_, ok = m.FindCompanyByName("")
	assert.False(t, ok)
	_, ok = m.FindCompanyByName("Globex")
	assert.False(t, ok)
}

func TestFindCompanyByNameIgnoresAccents(t *testing.T) {
	m := newTestManager()
	created, err := m.CreateCompany(context.Background(), domain.NewCompany{Name: "Conexão Serviços"})
	require.NoError(t, err)

	got, ok := m.FindCompanyByName("CONEXAO  SERVICOS")
	require.True(t, ok)
	assert.Equal(t, created.ID, got.ID)
}

func TestCompanyLookupNotFound(t *testing.T) {
	m := newTestManager()
	_, err := m.Company(5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = m.Correspondence(5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
