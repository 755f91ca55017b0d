package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wayneeseguin/logpipe/pkg/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{config.EnvLevel, config.EnvFormat, config.EnvConfig, "LOGPIPE_LINE_LEVEL", "LOGPIPE_METRICS_ADDR"} {
		t.Setenv(name, "")
	}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPipeToFile(t *testing.T) {
	clearEnv(t)
	logPath := filepath.Join(t.TempDir(), "out.log")

	_, stderr, err := run(t, "first\n\nsecond\r\n",
		"--console=false", "--file", logPath, "--fmt", "{level} {message}", "--line-level", "warning", "--stats")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := string(data); got != "WARNING first\nWARNING second\n" {
		t.Errorf("file content = %q", got)
	}
	if !strings.Contains(stderr, "file (file): delivered 2") {
		t.Errorf("stats output = %q", stderr)
	}
}

func TestPipeToConsoleRespectsLevel(t *testing.T) {
	clearEnv(t)
	_, stderr, err := run(t, "hidden\n", "--level", "ERROR", "--fmt", "{message}")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Contains(stderr, "hidden") {
		t.Errorf("INFO line passed an ERROR logger: %q", stderr)
	}

	_, stderr, err = run(t, "shown\n", "--level", "ERROR", "--line-level", "CRITICAL", "--fmt", "{message}")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if stderr != "shown\n" {
		t.Errorf("console output = %q", stderr)
	}
}

func TestLineLevelFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOGPIPE_LINE_LEVEL", "ERROR")
	_, stderr, err := run(t, "x\n", "--fmt", "{level}")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if stderr != "ERROR\n" {
		t.Errorf("console output = %q", stderr)
	}
}

func TestInvalidFlags(t *testing.T) {
	clearEnv(t)
	if _, _, err := run(t, "", "--line-level", "LOUD"); err == nil {
		t.Error("expected an error for an invalid line level")
	}
	if _, _, err := run(t, "", "--level", "LOUD"); err == nil {
		t.Error("expected an error for an invalid logger level")
	}
}

func TestCheckPrintsResolvedSettings(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "logging.yaml")
	cfg := "name: svc\nlevel: WARNING\nsmtp_handler:\n  mailhost: mail\n  fromaddr: a@b\n  toaddrs: [c@d]\n  credentials: [user, hunter2]\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := run(t, "", "check", "--config", cfgPath, "--level", "DEBUG")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"name: svc", "level: DEBUG", "mailhost: mail", "shutdown_timeout: 5s"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "hunter2") {
		t.Error("credentials must not be printed")
	}
}

func TestCheckBuildReportsFailures(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "logging.toml")
	if err := os.WriteFile(cfgPath, []byte("[http_handler]\nurl = \"/x\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := run(t, "", "check", "--config", cfgPath, "--build")
	if err == nil {
		t.Fatal("expected an error for a sink that fails to build")
	}
	if !strings.Contains(stdout, "ok     console") || !strings.Contains(stdout, "failed") {
		t.Errorf("output = %q", stdout)
	}
}
