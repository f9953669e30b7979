package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"termsheet/internal/domain"
	"termsheet/internal/notify"
	"termsheet/internal/port"
)

// EmailAPI is the subset of *sesv2.Client the notifier uses.
type EmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      EmailAPI
	fromAddress string
	recipients  []string
}

// NewSESNotifier creates a new SES-backed RunNotifier.
func NewSESNotifier(region, fromAddress string, recipients []string) (port.RunNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewWithClient(sesv2.NewFromConfig(cfg), fromAddress, recipients), nil
}

// NewWithClient creates a notifier over an existing SES client.
func NewWithClient(client EmailAPI, fromAddress string, recipients []string) port.RunNotifier {
	return &sesNotifier{client: client, fromAddress: fromAddress, recipients: recipients}
}

func (s *sesNotifier) NotifyRunCompleted(ctx context.Context, run *domain.Run) error {
	if len(s.recipients) == 0 {
		return nil
	}

	subject := notify.Subject(run)
	htmlBody := notify.HTMLBody(run)
	textBody := notify.TextBody(run)
	from := fmt.Sprintf("Term Sheet Extraction <%s>", s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}
