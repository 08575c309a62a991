package email

import (
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service delivers transactional mail through an unauthenticated SMTP relay.
type Service struct {
	addr     string
	from     string
	sendMail sendFunc
	now      func() time.Time
}

func NewService(host, port, from string) *Service {
	return &Service{
		addr:     net.JoinHostPort(host, port),
		from:     from,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// SendOrderConfirmation mails the rendered confirmation for c to the buyer.
// The subject carries the first eight characters of the order id.
func (s *Service) SendOrderConfirmation(to string, c OrderConfirmation) error {
	body, err := BuildOrderConfirmationBody(c)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	ref := c.OrderID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	msg := s.compose(to, "Order confirmation #"+ref, body)
	if err := s.sendMail(s.addr, nil, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp %s: %w", s.addr, err)
	}
	return nil
}

func (s *Service) compose(to, subject, html string) []byte {
	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", s.from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/html; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
