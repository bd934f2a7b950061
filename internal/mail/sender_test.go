package mail

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSenderLogsCode(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := NewLogSender(zap.New(core))

	if err := sender.SendCode(context.Background(), "user@example.com", "123456"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["email"] != "user@example.com" || fields["code"] != "123456" {
		t.Fatalf("unexpected log fields %v", fields)
	}
}

func TestNewSMTPSenderRequiresHost(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}); err == nil {
		t.Fatalf("expected error for missing host")
	}
}
