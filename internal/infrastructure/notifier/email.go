package notifier

import (
	"context"
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/ports"
)

// EmailNotifier delivers digests over the Mailjet API.
type EmailNotifier struct {
	publicKey     string
	privateKey    string
	from          string
	subjectPrefix string
}

var _ ports.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier registers Mailjet credentials and the sender address.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		publicKey:     cfg.PublicKey,
		privateKey:    cfg.PrivateKey,
		from:          cfg.FromAddress,
		subjectPrefix: cfg.SubjectPrefix,
	}
}

// Send mails the digest to every recipient in one Mailjet call.
func (n *EmailNotifier) Send(ctx context.Context, recipients []string, subject, body string) error {
	if n.publicKey == "" || n.privateKey == "" || n.from == "" {
		return fmt.Errorf("email notifier misconfigured")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	to := mailjet.RecipientsV31{}
	for _, addr := range recipients {
		to = append(to, mailjet.RecipientV31{Email: addr})
	}

	if n.subjectPrefix != "" {
		subject = n.subjectPrefix + " " + subject
	}

	clt := mailjet.NewMailjetClient(n.publicKey, n.privateKey)
	msgs := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: n.from},
		To:       &to,
		Subject:  subject,
		TextPart: body,
	}}}

	if _, err := clt.SendMailV31(&msgs); err != nil {
		return fmt.Errorf("could not send mail: %w", err)
	}

	return nil
}
