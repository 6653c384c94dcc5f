// Package notify sends operator SMS updates when runs finish. Notification
// failures are logged and swallowed: a video that rendered fine must never
// fail its job because Twilio is down.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/AitomaLab/ugc-engine/config"
)

// Notifier reports run outcomes. The no-op implementation is used when
// Twilio credentials are not configured.
type Notifier interface {
	RunCompleted(jobID, videoURL string)
	RunFailed(jobID, reason string)
}

type NoopNotifier struct{}

func (NoopNotifier) RunCompleted(jobID, videoURL string) {}
func (NoopNotifier) RunFailed(jobID, reason string)      {}

type smsClient interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type SMSNotifier struct {
	client     smsClient
	fromNumber string
	toNumber   string
	logger     *slog.Logger
}

// New picks the SMS notifier when credentials are present and the no-op one
// otherwise.
func New(cfg *config.Config, logger *slog.Logger) Notifier {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioToNumber == "" {
		logger.Info("Twilio not configured, run notifications disabled")
		return NoopNotifier{}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &SMSNotifier{
		client:     client.Api,
		fromNumber: cfg.TwilioFromNumber,
		toNumber:   cfg.TwilioToNumber,
		logger:     logger,
	}
}

func (n *SMSNotifier) RunCompleted(jobID, videoURL string) {
	n.send(fmt.Sprintf("Video job %s complete: %s", jobID, videoURL))
}

func (n *SMSNotifier) RunFailed(jobID, reason string) {
	n.send(fmt.Sprintf("Video job %s failed: %s", jobID, reason))
}

func (n *SMSNotifier) send(body string) {
	params := &twilioApi.CreateMessageParams{
		To:   &n.toNumber,
		From: &n.fromNumber,
		Body: &body,
	}

	message, err := n.client.CreateMessage(params)
	if err != nil {
		n.logger.Error("Failed to send SMS notification",
			slog.String("error", err.Error()),
			slog.String("to", n.toNumber))
		return
	}
	n.logger.Info("SMS notification sent", slog.String("message_sid", str(message.Sid)))
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
