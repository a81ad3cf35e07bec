package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

// Mailer delivers password recovery codes
type Mailer interface {
	SendRecoveryCode(ctx context.Context, to, studentID, code string) error
}

// SESAPI is the subset of the SES client used by SESMailer
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends recovery mail through AWS SES
type SESMailer struct {
	client      SESAPI
	fromAddress string
	codeTTL     time.Duration
	logger      *slog.Logger
}

// NewSESMailer loads the default AWS credential chain for region
func NewSESMailer(ctx context.Context, region, fromAddress string, codeTTL time.Duration, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESMailerWithClient(ses.NewFromConfig(cfg), fromAddress, codeTTL, logger), nil
}

func NewSESMailerWithClient(client SESAPI, fromAddress string, codeTTL time.Duration, logger *slog.Logger) *SESMailer {
	return &SESMailer{
		client:      client,
		fromAddress: fromAddress,
		codeTTL:     codeTTL,
		logger:      logger,
	}
}

func (s *SESMailer) SendRecoveryCode(ctx context.Context, to, studentID, code string) error {
	minutes := int(s.codeTTL.Minutes())

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h1>Reset your UniPlus password</h1>
    <p>A password reset was requested for student ID <strong>%s</strong>.</p>
    <p>Your recovery code is:</p>
    <p style="font-size: 24px; letter-spacing: 4px;"><code>%s</code></p>
    <p>The code expires in %d minutes. If you did not ask for a reset, ignore this email.</p>
</body>
</html>
`, studentID, code, minutes)

	textBody := fmt.Sprintf(`Reset your UniPlus password

A password reset was requested for student ID %s.

Your recovery code is: %s

The code expires in %d minutes. If you did not ask for a reset, ignore this email.
`, studentID, code, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String("Your UniPlus recovery code")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send recovery email via SES",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("recovery email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogMailer writes the code to the log instead of sending mail. Development only.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendRecoveryCode(ctx context.Context, to, studentID, code string) error {
	m.logger.Info("recovery code issued",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("student_id", pkglogger.SanitizedID(studentID)),
		slog.String("code", code))
	return nil
}
