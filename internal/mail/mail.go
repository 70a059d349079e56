// Package mail delivers results mails. Bodies are written in markdown and
// converted to HTML; multiple-choice results carry the accuracy chart as an
// inline image.
package mail

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"gopkg.in/gomail.v2"
)

// chartName is the embedded image's filename and its cid reference in the
// HTML body.
const chartName = "chart.png"

// RenderHTML converts a markdown body to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Mailer sends mail through one SMTP account.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers a markdown body as a plain+HTML alternative. A non-nil
// inlinePNG is embedded and shown below the HTML body.
func (m *Mailer) Send(to, subject, markdown string, inlinePNG []byte) error {
	msg, err := m.message(to, subject, markdown, inlinePNG)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (m *Mailer) message(to, subject, markdown string, inlinePNG []byte) (*gomail.Message, error) {
	html, err := RenderHTML(markdown)
	if err != nil {
		return nil, err
	}
	if inlinePNG != nil {
		html += fmt.Sprintf(`<br><img src="cid:%s" alt="결과 그래프">`, chartName)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	// Plain part carries the raw markdown for clients that skip HTML.
	msg.SetBody("text/plain", markdown)
	msg.AddAlternative("text/html", html)
	if inlinePNG != nil {
		msg.Embed(chartName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(inlinePNG)
			return err
		}))
	}
	return msg, nil
}
