package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

// LogNotifier records the notice instead of sending it. It is used when no
// SMTP relay is configured.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyCorrespondence(_ context.Context, company domain.Company, corr domain.Correspondence) error {
	n.log.WithFields(logrus.Fields{
		"company_id":        company.ID,
		"company":           company.Name,
		"email":             company.Email,
		"correspondence_id": corr.ID,
		"sender":            corr.Sender,
	}).Info("correspondence notice")
	return nil
}
