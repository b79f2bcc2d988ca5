package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

func seededAuditManager(t *testing.T) *Manager {
	t.Helper()
	m := newTestManager()
	ctx := context.Background()
	company, err := m.CreateCompany(ctx, domain.NewCompany{Name: "Acme"})
	require.NoError(t, err)
	for _, sender := range []string{"John", "Mary", "Ann"} {
		_, err := m.CreateCorrespondence(ctx, domain.NewCorrespondence{Sender: sender})
		require.NoError(t, err)
	}
	_, err = m.UpdateCorrespondenceStatus(ctx, 2, domain.StatusNotified, domain.CorrespondencePatch{})
	require.NoError(t, err)
	m.DeleteCompany(ctx, company.ID)
	return m
}

func TestAuditServicePageDefaultsToNewestFirst(t *testing.T) {
	svc := NewAuditService(seededAuditManager(t))

	page, err := svc.Page(domain.AuditFilter{Page: domain.PageRequest{Size: 4}})
	require.NoError(t, err)
	assert.Equal(t, 0, page.PageNumber)
	assert.Equal(t, 4, page.PageSize)
	assert.Equal(t, int64(6), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.LastPage)
	require.Len(t, page.Content, 4)
	assert.Equal(t, int64(6), page.Content[0].ID)
	assert.Equal(t, int64(3), page.Content[3].ID)

	last, err := svc.Page(domain.AuditFilter{Page: domain.PageRequest{Number: 1, Size: 4}})
	require.NoError(t, err)
	assert.True(t, last.LastPage)
	assert.Len(t, last.Content, 2)
}

func TestAuditServicePageFiltersAndSorts(t *testing.T) {
	svc := NewAuditService(seededAuditManager(t))

	page, err := svc.Page(domain.AuditFilter{
		EntityKind: domain.EntityCorrespondence,
		Page:       domain.PageRequest{SortBy: "entidadeId", SortOrder: domain.SortAsc},
	})
	require.NoError(t, err)
	require.Len(t, page.Content, 4)
	ids := make([]int64, 0, len(page.Content))
	for _, e := range page.Content {
		ids = append(ids, e.EntityID)
	}
	assert.Equal(t, []int64{1, 2, 2, 3}, ids)

	page, err = svc.Page(domain.AuditFilter{Action: domain.ActionDelete})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, domain.EntityCompany, page.Content[0].EntityKind)
}

func TestAuditServiceRejectsUnknownFilters(t *testing.T) {
	svc := NewAuditService(seededAuditManager(t))

	_, err := svc.Page(domain.AuditFilter{EntityKind: "INVOICE"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Page(domain.AuditFilter{Action: "PURGE"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.All(domain.AuditFilter{Action: "PURGE"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuditServiceAllKeepsAppendOrder(t *testing.T) {
	m := seededAuditManager(t)
	svc := NewAuditService(m)

	all, err := svc.All(domain.AuditFilter{EntityID: 2, EntityKind: domain.EntityCorrespondence})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.ActionCreate, all[0].Action)
	assert.Equal(t, domain.ActionUpdate, all[1].Action)

	// Filtering must not disturb the manager's own log.
	assert.Len(t, m.AuditEntries(), 6)
}

func TestWriteAuditWorkbook(t *testing.T) {
	m := seededAuditManager(t)
	var buf bytes.Buffer
	require.NoError(t, WriteAuditWorkbook(&buf, m.AuditEntries()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Audit")
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, auditHeadings, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "COMPANY", rows[1][2])
	assert.Equal(t, "CREATE", rows[1][4])
	assert.Equal(t, "DELETE", rows[6][4])
}
