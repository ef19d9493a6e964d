package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const smsMaxLength = 160

// SMSSender sends alert notifications via Twilio's REST API. Per §4.7 this
// channel is entirely optional; deployments that omit it simply never
// register an SMSSender with the Dispatcher.
type SMSSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewSMSSender creates an SMSSender against the given Twilio account.
func NewSMSSender(accountSID, authToken, fromNumber string) *SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSSender{client: client, fromNumber: fromNumber}
}

// Send delivers n as a single SMS, formatted `[SEVERITY] ...` and truncated
// to 160 characters per §4.7.
func (s *SMSSender) Send(ctx context.Context, n Notification) error {
	body := formatSMSBody(n)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.Target)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return errors.New("twilio returned no message sid")
	}
	return nil
}

func formatSMSBody(n Notification) string {
	prefix := fmt.Sprintf("[%s] ", strings.ToUpper(string(n.Severity)))
	body := []rune(prefix + n.Body)
	if len(body) <= smsMaxLength {
		return string(body)
	}
	return string(body[:smsMaxLength])
}
