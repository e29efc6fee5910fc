package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPSender struct {
	addr     string
	host     string
	username string
	password string
	sendMail sendMailFunc
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("%w: SMTP_HOST", ErrMissingCredential)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: SMTP_USERNAME/SMTP_PASSWORD", ErrMissingCredential)
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		addr:     cfg.Host + ":" + strconv.Itoa(port),
		host:     cfg.Host,
		username: cfg.Username,
		password: cfg.Password,
		sendMail: smtp.SendMail,
	}, nil
}

// Send delivers msg through the relay. net/smtp has no context support, so
// ctx is only checked before the connection is opened.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", fmt.Errorf("invalid sender address: %w", err)
	}

	id := uuid.NewString()
	body, err := buildMIME(from, msg, id, s.host)
	if err != nil {
		return "", err
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := s.sendMail(s.addr, auth, from.Address, msg.To, body); err != nil {
		return "", fmt.Errorf("smtp: %w", err)
	}
	return id, nil
}

func buildMIME(from *mail.Address, msg Message, id, host string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	headers := []string{
		"From: " + from.String(),
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.BEncoding.Encode("UTF-8", msg.Subject),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"Message-ID: <" + id + "@" + host + ">",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=" + writer.Boundary(),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(wrapBase64([]byte(msg.HTML))); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType(a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {disposition},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(wrapBase64(a.Content)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

func contentType(filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// wrapBase64 encodes data in 76 character lines.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b bytes.Buffer
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.Bytes()
}
