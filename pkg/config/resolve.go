package config

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/logpipe/pkg/backends"
	"github.com/wayneeseguin/logpipe/pkg/features"
	"github.com/wayneeseguin/logpipe/pkg/formatters"
	"github.com/wayneeseguin/logpipe/pkg/logpipe"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

// Options are the caller's explicit settings plus the things only code can
// supply. Set fields win over the config file, which wins over the
// environment, which wins over Defaults.
type Options struct {
	Settings

	// ConfigPath names the config file. When empty, the file named by
	// LOGPIPE_CONFIG is used if it exists.
	ConfigPath string

	Filters      []features.Filter
	ErrorHandler logpipe.ErrorHandler
	// ConsoleWriter replaces stderr for the console sink.
	ConsoleWriter io.Writer
	RequireSink   bool
}

// Defaults returns the compiled-in settings.
func Defaults() *Settings {
	return &Settings{
		Name:             String(logpipe.DefaultName),
		Level:            String(logpipe.DefaultLevel.String()),
		Format:           String(formatters.DefaultTemplate),
		Console:          Bool(true),
		UseQueue:         Bool(false),
		QueueSize:        Int(logpipe.DefaultQueueSize),
		UseMemoryHandler: Bool(false),
		MemoryCapacity:   Int(logpipe.DefaultBatchCapacity),
		MemoryFlushLevel: String(logpipe.DefaultBatchFlushLevel.String()),
		ShutdownTimeout:  Duration(logpipe.DefaultShutdownTimeout),
	}
}

// FromEnv reads the level and format variables. An unparsable level is
// ignored.
func FromEnv(levelVar, formatVar string) *Settings {
	s := &Settings{}
	if v, ok := os.LookupEnv(levelVar); ok {
		if l, err := types.ParseLevel(v); err == nil {
			s.Level = String(l.String())
		}
	}
	if v, ok := os.LookupEnv(formatVar); ok && v != "" {
		s.Format = &v
	}
	return s
}

// Resolve merges Defaults, the environment, the config file and opts, each
// scalar independently.
func Resolve(opts Options) (*Settings, error) {
	path := opts.ConfigPath
	if path == "" {
		if p := os.Getenv(EnvConfig); p != "" {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				path = p
			}
		}
	}

	var file *Settings
	if path != "" {
		var err error
		if file, err = Load(path); err != nil {
			return nil, err
		}
	}

	// config_env itself can only come from the file or the caller.
	names := &Settings{}
	names.Override(file)
	names.Override(&opts.Settings)

	merged := Defaults()
	merged.Override(FromEnv(names.envNames()))
	merged.Override(file)
	merged.Override(&opts.Settings)
	return merged, nil
}

// ToSpec turns merged settings into a pipeline spec. A malformed sink
// section becomes a SinkConfig carrying the error, so Build skips just
// that sink.
func ToSpec(s *Settings, opts Options) (logpipe.Spec, error) {
	spec := logpipe.Spec{
		Name:         deref(s.Name),
		Format:       deref(s.Format),
		Formatter:    deref(s.Formatter),
		Context:      features.SortedFields(s.Context),
		Filters:      opts.Filters,
		ErrorHandler: opts.ErrorHandler,
		RequireSink:  opts.RequireSink,
	}
	if s.Level != nil {
		l, err := types.ParseLevel(*s.Level)
		if err != nil {
			return spec, errors.Wrap(err, "level")
		}
		spec.Level = l
	}
	if s.ShutdownTimeout != nil {
		spec.ShutdownTimeout = *s.ShutdownTimeout
	}

	var batch *logpipe.BatchConfig
	if s.UseMemoryHandler != nil && *s.UseMemoryHandler {
		batch = &logpipe.BatchConfig{}
		if s.MemoryCapacity != nil {
			batch.Capacity = *s.MemoryCapacity
		}
		if s.MemoryFlushLevel != nil {
			l, err := types.ParseLevel(*s.MemoryFlushLevel)
			if err != nil {
				return spec, errors.Wrap(err, "memory_flush_level")
			}
			batch.FlushLevel = l
		}
	}
	useQueue := s.UseQueue != nil && *s.UseQueue
	queueSize := 0
	if s.QueueSize != nil {
		queueSize = *s.QueueSize
	}

	add := func(cfg logpipe.SinkConfig, common SinkSettings) {
		cfg.Format = common.Format
		cfg.Formatter = common.Formatter
		if common.Level != "" {
			l, err := types.ParseLevel(common.Level)
			if err != nil {
				cfg.Err = errors.Wrap(err, "level")
			}
			cfg.Level = l
		}
		if common.err != nil {
			cfg.Err = common.err
		}
		if batch != nil {
			b := *batch
			cfg.Batch = &b
		}
		if useQueue && cfg.Kind != logpipe.KindConsole {
			cfg.Async = true
		}
		if cfg.Async && cfg.QueueSize == 0 {
			cfg.QueueSize = queueSize
		}
		spec.Sinks = append(spec.Sinks, cfg)
	}

	if s.Console == nil || *s.Console {
		add(logpipe.SinkConfig{
			Kind:    logpipe.KindConsole,
			Console: &logpipe.ConsoleConfig{Stderr: true, Writer: opts.ConsoleWriter},
		}, SinkSettings{})
	}
	if f := s.File; f != nil {
		add(logpipe.SinkConfig{
			Kind: logpipe.KindFile,
			File: &logpipe.FileConfig{Path: f.Filename},
		}, f.SinkSettings)
	}
	if r := s.RotatingFile; r != nil {
		add(logpipe.SinkConfig{
			Kind: logpipe.KindRotatingFile,
			Rotating: &logpipe.RotatingFileConfig{
				Path:        r.Filename,
				MaxBytes:    r.MaxBytes,
				BackupCount: r.BackupCount,
			},
		}, r.SinkSettings)
	}
	if r := s.TimedRotatingFile; r != nil {
		add(logpipe.SinkConfig{
			Kind: logpipe.KindTimedRotatingFile,
			Timed: &logpipe.TimedRotatingFileConfig{
				Path:        r.Filename,
				When:        r.When,
				Interval:    r.Interval,
				BackupCount: r.BackupCount,
				UTC:         r.UTC,
			},
		}, r.SinkSettings)
	}
	if m := s.SMTP; m != nil {
		add(logpipe.SinkConfig{
			Kind:      logpipe.KindSMTP,
			Async:     m.Async,
			QueueSize: m.QueueSize,
			SMTP: &backends.SMTPConfig{
				Host:     m.Mailhost,
				Port:     m.Port,
				From:     m.FromAddr,
				To:       m.ToAddrs,
				Subject:  m.Subject,
				Username: m.Username,
				Password: m.Password,
				Secure:   m.Secure,
				Timeout:  m.Timeout,
			},
		}, m.SinkSettings)
	}
	if h := s.HTTP; h != nil {
		add(logpipe.SinkConfig{
			Kind:      logpipe.KindHTTP,
			Async:     h.Async,
			QueueSize: h.QueueSize,
			HTTP: &backends.HTTPConfig{
				Host:    h.Host,
				URL:     h.URL,
				Method:  h.Method,
				Secure:  h.Secure,
				Headers: h.Headers,
				Timeout: h.Timeout,
			},
		}, h.SinkSettings)
	}
	if n := s.NATS; n != nil {
		add(logpipe.SinkConfig{
			Kind:      logpipe.KindNATS,
			Async:     n.Async,
			QueueSize: n.QueueSize,
			NATS: &backends.NATSConfig{
				URL:      n.URL,
				Subject:  n.Subject,
				Username: n.Username,
				Password: n.Password,
				Timeout:  n.Timeout,
			},
		}, n.SinkSettings)
	}
	return spec, nil
}

// GetLogger resolves every configuration source and builds the pipeline.
//
// Example:
//
//	logger, err := config.GetLogger(config.Options{
//		ConfigPath: "logging.yaml",
//		Settings:   config.Settings{Level: config.String("DEBUG")},
//	})
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
func GetLogger(opts Options) (*logpipe.Logger, error) {
	settings, err := Resolve(opts)
	if err != nil {
		return nil, err
	}
	spec, err := ToSpec(settings, opts)
	if err != nil {
		return nil, err
	}
	return logpipe.Build(spec)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
