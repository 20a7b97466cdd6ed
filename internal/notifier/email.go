package notifier

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/pkg/logger"
)

// Notifier alerts clinicians about noteworthy results. Best effort: a failed
// alert is logged, never surfaced to the uploading request.
type Notifier interface {
	HighRiskAlert(ctx context.Context, to string, patientName string, result *model.Result) error
}

type Config struct {
	Enabled  bool
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	From     string
}

type emailNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    *logger.Logger
}

func NewEmailNotifier(cfg Config, log *logger.Logger) Notifier {
	if !cfg.Enabled {
		return &noopNotifier{}
	}
	return &emailNotifier{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.From,
		log:    log,
	}
}

func (n *emailNotifier) HighRiskAlert(ctx context.Context, to string, patientName string, result *model.Result) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("High stroke risk detected for %s", patientName))
	m.SetBody("text/plain", fmt.Sprintf(
		"A CT scan for %s came back with a stroke probability of %.1f%% (confidence %.1f%%).\n\n%s\n",
		patientName,
		result.StrokeProbability,
		result.ModelConfidence,
		result.Recommendations,
	))

	if err := n.dialer.DialAndSend(m); err != nil {
		n.log.Error(err, "failed to send high risk alert")
		return err
	}
	return nil
}

type noopNotifier struct{}

func (n *noopNotifier) HighRiskAlert(ctx context.Context, to string, patientName string, result *model.Result) error {
	return nil
}
