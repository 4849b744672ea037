package sms

import (
	"context"
	"errors"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender sends through the Twilio Messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

func (s *TwilioSender) ProviderID() string {
	return "twilio"
}

// Send ignores ctx; the Twilio client has no per-call context.
func (s *TwilioSender) Send(ctx context.Context, to string, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return "", &ProviderError{Provider: s.ProviderID(), Status: restErr.Status, Detail: restErr.Message}
	}
	if err != nil {
		return "", err
	}
	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return "", errors.New(*resp.ErrorMessage)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
