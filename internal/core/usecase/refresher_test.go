package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

func TestRefresherCoalescesScheduledRefreshes(t *testing.T) {
	source := &companySourceStub{companies: []domain.Company{{ID: 1, Name: "Acme"}}}
	m := newTestManager()
	r := NewRefresher(source, m, 20*time.Millisecond, quietLogger())
	defer r.Close()

	for range 5 {
		r.Schedule()
	}
	require.Eventually(t, func() bool { return r.Completed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, source.Calls())
	assert.Len(t, m.Companies(), 1)
	assert.Empty(t, m.AuditEntries())
}

func TestRefresherTriggersOnImplicitCompanyOnly(t *testing.T) {
	source := &companySourceStub{}
	bus := NewBus()
	m := newTestManager(WithBus(bus))
	r := NewRefresher(source, m, 10*time.Millisecond, quietLogger())
	defer r.Close()
	detach := r.Attach(bus)
	defer detach()

	_, err := m.CreateCompany(context.Background(), domain.NewCompany{Name: "Explicit"})
	require.NoError(t, err)
	_, err = m.CreateCorrespondence(context.Background(), domain.NewCorrespondence{Sender: "John"})
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, source.Calls())

	_, err = m.createCompany(context.Background(), domain.NewCompany{Name: "Implicit"}, true)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFailedWriteThroughKeepsCompanyAfterIntake(t *testing.T) {
	store := &stateStoreStub{saveErr: errors.New("disk full")}
	source := &companySourceStub{}
	bus := NewBus()
	m := newTestManager(WithStateStore(store), WithBus(bus))
	r := NewRefresher(source, m, time.Millisecond, quietLogger())
	defer r.Close()
	detach := r.Attach(bus)
	defer detach()

	company, err := m.CreateCompany(context.Background(), domain.NewCompany{Name: "Acme"})
	require.NoError(t, err)
	_, err = m.CreateCorrespondence(context.Background(), domain.NewCorrespondence{Sender: "John", CompanyName: "Acme"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, source.Calls())
	require.Len(t, m.Companies(), 1)
	before := len(m.AuditEntries())
	assert.True(t, m.DeleteCompany(context.Background(), company.ID))
	assert.Len(t, m.AuditEntries(), before+1)
}

// gatedSource holds ListCompanies until release is closed.
type gatedSource struct {
	entered   chan struct{}
	release   chan struct{}
	companies []domain.Company
}

func (s *gatedSource) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	close(s.entered)
	select {
	case <-s.release:
		return s.companies, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshCompaniesHoldsMutationsUntilSwapped(t *testing.T) {
	m := newTestManager()
	source := &gatedSource{
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
		companies: []domain.Company{{ID: 4, Name: "Upstream"}},
	}

	refreshed := make(chan error, 1)
	go func() {
		_, err := m.RefreshCompanies(context.Background(), source)
		refreshed <- err
	}()
	<-source.entered

	created := make(chan domain.Company, 1)
	go func() {
		c, _ := m.CreateCompany(context.Background(), domain.NewCompany{Name: "Concurrent"})
		created <- c
	}()

	select {
	case <-created:
		t.Fatal("create finished while the refresh was fetching")
	case <-time.After(30 * time.Millisecond):
	}

	close(source.release)
	require.NoError(t, <-refreshed)
	c := <-created
	assert.Equal(t, int64(5), c.ID)

	names := []string{}
	for _, company := range m.Companies() {
		names = append(names, company.Name)
	}
	assert.ElementsMatch(t, []string{"Upstream", "Concurrent"}, names)
}

func TestRefresherFailureKeepsCompanies(t *testing.T) {
	source := &companySourceStub{err: errors.New("unreachable")}
	m := newTestManager()
	_, err := m.CreateCompany(context.Background(), domain.NewCompany{Name: "Acme"})
	require.NoError(t, err)

	r := NewRefresher(source, m, time.Millisecond, quietLogger())
	defer r.Close()
	r.Schedule()

	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), r.Completed())
	assert.Len(t, m.Companies(), 1)
}

func TestRefresherCloseCancelsPending(t *testing.T) {
	source := &companySourceStub{}
	r := NewRefresher(source, newTestManager(), time.Hour, quietLogger())
	r.Schedule()
	require.NoError(t, r.Close())

	r.Schedule()
	assert.Equal(t, 0, source.Calls())
}
