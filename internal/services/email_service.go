package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

// EmailSender defines the interface for sending account emails
type EmailSender interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresIn time.Duration) error
}

// AWSSESEmailService delivers account mail through AWS SES.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

const resetHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; color: #222; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h2>Password reset requested</h2>
  <p>Someone asked to reset the password for the account registered to this
  address. If that was you, use the link below to choose a new password.</p>
  <p><a href="%s" style="display: inline-block; background: #1a4f8b; color: #fff; padding: 12px 24px; border-radius: 4px; text-decoration: none;">Choose a new password</a></p>
  <p>Or paste this link into your browser:<br><code>%s</code></p>
  <p>The link expires in %d minutes and stops working as soon as the password
  changes.</p>
  <p>If you did not ask for this, ignore this message. Your password stays as
  it is.</p>
  <hr style="border: none; border-top: 1px solid #ddd; margin-top: 24px;">
  <p style="color: #777; font-size: 12px;">Automated message, replies are not read.</p>
</body>
</html>`

const resetTextTemplate = `Password reset requested

Someone asked to reset the password for the account registered to this
address. If that was you, open the link below to choose a new password:

%s

The link expires in %d minutes and stops working as soon as the password
changes.

If you did not ask for this, ignore this message. Your password stays as
it is.

Automated message, replies are not read.`

// SendPasswordReset mails a one-time reset link. The token never appears in
// logs; only the masked recipient does.
func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, email, token string, expiresIn time.Duration) error {
	resetLink := fmt.Sprintf("%s/password-reset?token=%s", s.baseURL, token)
	minutes := int(expiresIn.Minutes())

	input := &ses.SendEmailInput{
		Source:      aws.String(s.fromAddress),
		Destination: &types.Destination{ToAddresses: []string{email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String("Reset your password")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(fmt.Sprintf(resetHTMLTemplate, resetLink, resetLink, minutes))},
				Text: &types.Content{Data: aws.String(fmt.Sprintf(resetTextTemplate, resetLink, minutes))},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password reset email",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
