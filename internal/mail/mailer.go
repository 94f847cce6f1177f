// Package mail はメール送信機能を提供する。
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// Sender はメール送信のインターフェース。
type Sender interface {
	// Send は指定の宛先にメールを送信する。
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer はSMTP経由でメールを送信するSenderの実装。
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	from     string
}

// NewSMTPMailer はSMTPMailerを生成する。
// usernameが空の場合は認証なしで送信する（ローカル開発用）。
// useTLSがtrueの場合はTLS接続でSMTPサーバーに接続する。
func NewSMTPMailer(host string, port int, username, password string, useTLS bool, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		from:     from,
	}
}

// Send は指定の宛先にメールを送信する。
// 件名はRFC 2047のMIMEエンコードで日本語に対応する。
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if m.useTLS {
		return m.sendTLS(addr, auth, to, []byte(msg.String()))
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	return nil
}

// sendTLS はTLS接続を確立した上でメールを送信する。
func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.host})
	if err != nil {
		return fmt.Errorf("SMTPサーバーへのTLS接続に失敗しました: %w", err)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTPクライアントの作成に失敗しました: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP認証に失敗しました: %w", err)
		}
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	return client.Quit()
}

// compile-time interface check
var _ Sender = (*SMTPMailer)(nil)
