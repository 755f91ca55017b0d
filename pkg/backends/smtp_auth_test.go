package backends

import (
	"testing"

	"github.com/wneessen/go-mail"
)

func TestSMTPAuthType(t *testing.T) {
	tests := []struct {
		name   string
		secure bool
		want   mail.SMTPAuthType
	}{
		{"plain connection", false, mail.SMTPAuthPlainNoEnc},
		{"starttls", true, mail.SMTPAuthAutoDiscover},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := SMTPConfig{Host: "mail.example.com", Username: "u", Password: "p", Secure: tt.secure}
			if got := authType(cfg); got != tt.want {
				t.Errorf("authType() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewSMTPBackendWithCredentialsWithoutTLS(t *testing.T) {
	b, err := NewSMTPBackend(SMTPConfig{
		Host:     "mail.example.com",
		From:     "app@example.com",
		To:       []string{"ops@example.com"},
		Username: "u",
		Password: "p",
	})
	if err != nil {
		t.Fatalf("NewSMTPBackend() error = %v", err)
	}
	_ = b.Close()
}
