package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

func quietLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type stateStoreStub struct {
	mu sync.Mutex

	snapshot domain.Snapshot
	loadErr  error
	saveErr  error

	savedCompanies       []domain.Company
	deletedCompanies     []int64
	savedCorrespondences []domain.Correspondence
	deletedCorrs         []int64
	audit                []domain.AuditEntry
	payloads             []json.RawMessage
}

func (s *stateStoreStub) Load(context.Context) (domain.Snapshot, error) {
	return s.snapshot, s.loadErr
}

func (s *stateStoreStub) SaveCompany(_ context.Context, c domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedCompanies = append(s.savedCompanies, c)
	return s.saveErr
}

func (s *stateStoreStub) DeleteCompany(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedCompanies = append(s.deletedCompanies, id)
	return s.saveErr
}

func (s *stateStoreStub) SaveCorrespondence(_ context.Context, c domain.Correspondence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedCorrespondences = append(s.savedCorrespondences, c)
	return s.saveErr
}

func (s *stateStoreStub) DeleteCorrespondence(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedCorrs = append(s.deletedCorrs, id)
	return s.saveErr
}

func (s *stateStoreStub) AppendAudit(_ context.Context, entry domain.AuditEntry, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	s.payloads = append(s.payloads, payload)
	return s.saveErr
}

type companySourceStub struct {
	mu        sync.Mutex
	calls     int
	companies []domain.Company
	err       error
}

func (s *companySourceStub) ListCompanies(context.Context) ([]domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.companies, s.err
}

func (s *companySourceStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type notifierStub struct {
	err  error
	sent []domain.Correspondence
}

func (n *notifierStub) NotifyCorrespondence(_ context.Context, _ domain.Company, corr domain.Correspondence) error {
	n.sent = append(n.sent, corr)
	return n.err
}

type memoryPhotoStore struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func newMemoryPhotoStore() *memoryPhotoStore {
	return &memoryPhotoStore{files: map[string][]byte{}, types: map[string]string{}}
}

func (s *memoryPhotoStore) Put(_ context.Context, name, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	s.types[name] = contentType
	return nil
}

func (s *memoryPhotoStore) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), s.types[name], nil
}
