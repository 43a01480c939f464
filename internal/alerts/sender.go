// internal/alerts/sender.go
package alerts

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"leadflow/internal/common/logger"
)

// Sender delivers one rendered alert to the operator.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// SNSSender texts alerts to the operator's phone.
type SNSSender struct {
	client      *sns.Client
	phoneNumber string
}

func NewSNSSender(ctx context.Context, region, phoneNumber string) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSSender{client: sns.NewFromConfig(cfg), phoneNumber: phoneNumber}, nil
}

func (s *SNSSender) Send(ctx context.Context, subject, body string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(s.phoneNumber),
		Message:     aws.String(body),
	})
	return err
}

// SESSender emails alerts.
type SESSender struct {
	client *ses.Client
	from   string
	to     string
}

func NewSESSender(ctx context.Context, region, from, to string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESSender{client: ses.NewFromConfig(cfg), from: from, to: to}, nil
}

func (s *SESSender) Send(ctx context.Context, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: []string{s.to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
		},
	})
	return err
}

// LogSender writes alerts to the structured log. Default when no delivery
// channel is configured.
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) Send(ctx context.Context, subject, body string) error {
	s.Logger.Info(subject, map[string]interface{}{"alert": body})
	return nil
}
