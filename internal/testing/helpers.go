// Package testing gates tests that need live services. Integration tests run
// only when LOGPIPE_RUN_INTEGRATION_TESTS=true; go test -short or
// LOGPIPE_UNIT_TESTS_ONLY=true force unit mode regardless.
package testing

import (
	"os"
	"testing"
)

const (
	envUnitOnly    = "LOGPIPE_UNIT_TESTS_ONLY"
	envIntegration = "LOGPIPE_RUN_INTEGRATION_TESTS"
	envNATSURL     = "LOGPIPE_TEST_NATS_URL"
	envSMTPAddr    = "LOGPIPE_TEST_SMTP_ADDR"
)

// Unit reports whether only self-contained tests should run.
func Unit() bool {
	if os.Getenv(envUnitOnly) == "true" || testing.Short() {
		return true
	}
	return os.Getenv(envIntegration) != "true"
}

// Integration reports whether tests against live services should run.
func Integration() bool {
	return !Unit()
}

// SkipIfUnit skips t unless integration tests are enabled.
func SkipIfUnit(t *testing.T, message ...string) {
	t.Helper()
	if Unit() {
		msg := "integration test: set " + envIntegration + "=true to run"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// NATSURL returns the NATS server integration tests publish to.
func NATSURL() string {
	if url := os.Getenv(envNATSURL); url != "" {
		return url
	}
	return "nats://127.0.0.1:4222"
}

// SMTPAddr returns the host:port of the mail relay integration tests use.
func SMTPAddr() string {
	if addr := os.Getenv(envSMTPAddr); addr != "" {
		return addr
	}
	return "127.0.0.1:1025"
}

// RequireNATS skips t in unit mode and otherwise returns the server URL.
func RequireNATS(t *testing.T) string {
	t.Helper()
	SkipIfUnit(t, "NATS integration test: set "+envIntegration+"=true and "+envNATSURL)
	return NATSURL()
}
