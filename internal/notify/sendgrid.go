package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridNotifier delivers messages through the SendGrid v3 API.
type SendgridNotifier struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendgridNotifier constructs a SendgridNotifier. Subjects are prefixed
// with "[appName] ".
func NewSendgridNotifier(key, appName, fromName, fromAddress string) *SendgridNotifier {
	return &SendgridNotifier{
		key:        key,
		host:       sendgridHost,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + appName + "] ",
	}
}

func (n *SendgridNotifier) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = n.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// Send posts msg to SendGrid. A status of 400 or above is an error.
func (n *SendgridNotifier) Send(ctx context.Context, msg Message) error {
	if !msg.HasRecipients() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(n.key, sendgridEndpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
