package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// SESService is the subset of the SES client the transport uses
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends mail through Amazon SES
type SESTransport struct {
	client SESService
}

// NewSESTransport wraps an SES client
func NewSESTransport(client SESService) *SESTransport {
	return &SESTransport{client: client}
}

// NewSESClient builds an SES client from the default AWS credential chain
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ses.NewFromConfig(cfg), nil
}

// Send delivers msg and returns the SES message id
func (t *SESTransport) Send(ctx context.Context, msg *domain.OutboundMessage) (string, error) {
	out, err := t.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}
	if out == nil || out.MessageId == nil {
		return "", errors.New("ses returned no message id")
	}
	return aws.ToString(out.MessageId), nil
}
