package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

type IntakeRequest struct {
	Sender      string
	CompanyName string
	// ReceivedAt defaults to the time of intake.
	ReceivedAt time.Time
	Photo      io.Reader
}

type IntakeResult struct {
	Correspondence domain.Correspondence
	// Company is set when the destination is known, including when it was
	// created by this intake.
	Company        *domain.Company
	CompanyCreated bool
	Notified       bool
}

type IntakeOptions struct {
	// AutoCreateCompanies registers unknown destinations as companies instead
	// of returning the mail.
	AutoCreateCompanies bool
}

// IntakeService records a newly arrived piece of mail and decides its first
// status from whether its destination is a known company.
type IntakeService struct {
	manager  *Manager
	photos   *PhotoService
	notifier ports.Notifier
	opts     IntakeOptions
	log      logrus.FieldLogger
}

func NewIntakeService(manager *Manager, photos *PhotoService, notifier ports.Notifier, opts IntakeOptions, log logrus.FieldLogger) *IntakeService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &IntakeService{manager: manager, photos: photos, notifier: notifier, opts: opts, log: log}
}

func (s *IntakeService) Receive(ctx context.Context, req IntakeRequest) (IntakeResult, error) {
	if strings.TrimSpace(req.Sender) == "" {
		return IntakeResult{}, domain.NewValidationError("remetente", "sender is required")
	}

	var photoRef string
	if req.Photo != nil {
		if s.photos == nil {
			return IntakeResult{}, domain.NewValidationError("foto", "photo uploads are not enabled")
		}
		name, err := s.photos.Save(ctx, req.Photo)
		if err != nil {
			return IntakeResult{}, err
		}
		photoRef = name
	}

	companyName := strings.TrimSpace(req.CompanyName)
	in := domain.NewCorrespondence{
		Sender:      req.Sender,
		CompanyName: companyName,
		ReceivedAt:  req.ReceivedAt,
		PhotoRef:    photoRef,
		Status:      domain.StatusReceived,
	}
	var result IntakeResult

	if companyName != "" {
		company, found := s.manager.FindCompanyByName(companyName)
		if !found && s.opts.AutoCreateCompanies {
			created, err := s.manager.createCompany(ctx, domain.NewCompany{Name: companyName}, true)
			if err != nil {
				return IntakeResult{}, fmt.Errorf("create company for intake: %w", err)
			}
			company, found = created, true
			result.CompanyCreated = true
		}

		if found {
			now := s.manager.now()
			in.Status = domain.StatusNotified
			in.NotifiedAt = &now
			in.CompanyName = company.Name
			result.Company = &company
		} else {
			in.Status = domain.StatusReturned
		}
	}

	corr, err := s.manager.CreateCorrespondence(ctx, in)
	if err != nil {
		return IntakeResult{}, err
	}
	result.Correspondence = corr

	if result.Company != nil && result.Company.Email != "" && s.notifier != nil {
		if err := s.notifier.NotifyCorrespondence(ctx, *result.Company, corr); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"company_id":        result.Company.ID,
				"correspondence_id": corr.ID,
			}).Warn("correspondence notice not sent")
		} else {
			result.Notified = true
		}
	}

	s.log.WithFields(logrus.Fields{
		"correspondence_id": corr.ID,
		"status":            corr.Status,
		"company_created":   result.CompanyCreated,
	}).Info("correspondence received")
	return result, nil
}
