// Package email sends finished reports through AWS SES.
package email

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESSender delivers composed report emails via AWS SES.
type SESSender struct {
	client *ses.Client
	sender string
}

// NewSESSender creates an SES-backed sender using the default AWS credential
// chain for the given region. sender is the verified source address.
func NewSESSender(ctx context.Context, region, sender string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESSender{client: ses.NewFromConfig(cfg), sender: sender}, nil
}

// Send sends one HTML email and returns the SES message id.
func (s *SESSender) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: &s.sender,
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: &subject},
			Body: &types.Body{
				Html: &types.Content{Data: &htmlBody},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}
