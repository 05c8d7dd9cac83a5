package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/config"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioSMSSender sends SMS through the Twilio Messages API. With missing
// credentials it degrades to DeliverySkipped so environments without an
// account still run all automations.
type TwilioSMSSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// NewTwilioSMSSender builds an SMS sender from notifier config.
func NewTwilioSMSSender(cfg config.NotifierConfig) *TwilioSMSSender {
	return &TwilioSMSSender{
		accountSID: cfg.Twilio.AccountSID,
		authToken:  cfg.Twilio.AuthToken,
		fromNumber: cfg.Twilio.FromNumber,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message to Twilio. Outcomes are reported, never returned as
// errors, to keep delivery best effort.
func (s *TwilioSMSSender) Send(ctx context.Context, n Notification) Delivery {
	log := logger.FromContext(ctx)

	if s.accountSID == "" || s.authToken == "" || s.fromNumber == "" {
		log.Debug("SMS skipped: Twilio credentials not configured")
		return DeliverySkipped
	}
	if n.Recipient == "" {
		log.Debug("SMS skipped: recipient has no phone number")
		return DeliverySkipped
	}

	form := url.Values{}
	form.Set("To", n.Recipient)
	form.Set("From", s.fromNumber)
	form.Set("Body", n.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("SMS failed: could not build request", zap.Error(err))
		return DeliveryFailed
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Error("SMS failed: request error", zap.String("to", n.Recipient), zap.Error(err))
		return DeliveryFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("SMS failed: Twilio rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("to", n.Recipient),
			zap.ByteString("response", body))
		return DeliveryFailed
	}

	log.Info("SMS sent", zap.String("to", n.Recipient))
	return DeliverySent
}

var _ Sender = (*TwilioSMSSender)(nil)
