package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	defaultSMTPPort = 587
	codeSubject     = "Your HDNotes sign-in code"
)

var errMissingHost = errors.New("mail: smtp host required")

// SMTPConfig carries the credentials for the outbound SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers passcodes over an authenticated SMTP connection.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender constructs an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errMissingHost
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultSMTPPort
	}
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{client: client, from: from}, nil
}

// SendCode emails the plaintext passcode to the address.
func (s *SMTPSender) SendCode(ctx context.Context, email, code string) error {
	message := gomail.NewMsg()
	if err := message.From(s.from); err != nil {
		return fmt.Errorf("mail: from address: %w", err)
	}
	if err := message.To(email); err != nil {
		return fmt.Errorf("mail: to address: %w", err)
	}
	message.Subject(codeSubject)
	message.SetBodyString(gomail.TypeTextPlain,
		fmt.Sprintf("Your sign-in code is: %s\n\nThis code expires in 10 minutes.", code))
	return s.client.DialAndSendWithContext(ctx, message)
}

// LogSender writes codes to the application log instead of sending mail.
// Used when no SMTP relay is configured, e.g. local development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a log-backed sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendCode logs the passcode at info level.
func (s *LogSender) SendCode(_ context.Context, email, code string) error {
	s.logger.Info("otp code issued", zap.String("email", email), zap.String("code", code))
	return nil
}
