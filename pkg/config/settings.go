package config

import (
	"time"
)

// Environment variables read when nothing more specific is configured.
const (
	EnvLevel  = "LOGPIPE_LEVEL"
	EnvFormat = "LOGPIPE_FORMAT"
	EnvConfig = "LOGPIPE_CONFIG"
)

// Settings is one configuration source: a file, the environment or the
// caller's explicit options. A nil field means "not set here" and falls
// through to the next source. Sink sections are resolved as a whole.
type Settings struct {
	Name      *string    `yaml:"name,omitempty"`
	Level     *string    `yaml:"level,omitempty"`
	Format    *string    `yaml:"fmt,omitempty"`
	Formatter *string    `yaml:"formatter,omitempty"`
	ConfigEnv *ConfigEnv `yaml:"config_env,omitempty"`

	Console           *bool                     `yaml:"console,omitempty"`
	File              *FileSection              `yaml:"file,omitempty"`
	RotatingFile      *RotatingFileSection      `yaml:"rotating_file,omitempty"`
	TimedRotatingFile *TimedRotatingFileSection `yaml:"timed_rotating_file,omitempty"`
	SMTP              *SMTPSection              `yaml:"smtp_handler,omitempty"`
	HTTP              *HTTPSection              `yaml:"http_handler,omitempty"`
	NATS              *NATSSection              `yaml:"nats_handler,omitempty"`

	Context map[string]interface{} `yaml:"context,omitempty"`

	UseQueue         *bool          `yaml:"use_queue,omitempty"`
	QueueSize        *int           `yaml:"queue_size,omitempty"`
	UseMemoryHandler *bool          `yaml:"use_memory_handler,omitempty"`
	MemoryCapacity   *int           `yaml:"memory_capacity,omitempty"`
	MemoryFlushLevel *string        `yaml:"memory_flush_level,omitempty"`
	ShutdownTimeout  *time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// ConfigEnv renames the environment variables consulted for level and format.
type ConfigEnv struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// SinkSettings are accepted by every sink section.
type SinkSettings struct {
	Level     string `yaml:"level,omitempty"`
	Format    string `yaml:"fmt,omitempty"`
	Formatter string `yaml:"formatter,omitempty"`

	err error
}

// Err returns the decode error of the section, if any.
func (s SinkSettings) Err() error { return s.err }

type FileSection struct {
	Filename     string `yaml:"filename"`
	SinkSettings `yaml:",inline"`
}

type RotatingFileSection struct {
	Filename     string `yaml:"filename"`
	MaxBytes     int64  `yaml:"max_bytes"`
	BackupCount  int    `yaml:"backup_count"`
	SinkSettings `yaml:",inline"`
}

type TimedRotatingFileSection struct {
	Filename     string `yaml:"filename"`
	When         string `yaml:"when,omitempty"`
	Interval     int    `yaml:"interval,omitempty"`
	BackupCount  int    `yaml:"backup_count"`
	UTC          bool   `yaml:"utc,omitempty"`
	SinkSettings `yaml:",inline"`
}

// SMTPSection configures the email sink. Credentials are never printed.
type SMTPSection struct {
	Mailhost     string        `yaml:"mailhost"`
	Port         int           `yaml:"port,omitempty"`
	FromAddr     string        `yaml:"fromaddr"`
	ToAddrs      []string      `yaml:"toaddrs"`
	Subject      string        `yaml:"subject,omitempty"`
	Username     string        `yaml:"-"`
	Password     string        `yaml:"-"`
	Secure       bool          `yaml:"secure,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	Async        bool          `yaml:"async,omitempty"`
	QueueSize    int           `yaml:"queue_size,omitempty"`
	SinkSettings `yaml:",inline"`
}

type HTTPSection struct {
	Host         string            `yaml:"host"`
	URL          string            `yaml:"url,omitempty"`
	Method       string            `yaml:"method,omitempty"`
	Secure       bool              `yaml:"secure,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Timeout      time.Duration     `yaml:"timeout,omitempty"`
	Async        bool              `yaml:"async,omitempty"`
	QueueSize    int               `yaml:"queue_size,omitempty"`
	SinkSettings `yaml:",inline"`
}

type NATSSection struct {
	URL          string        `yaml:"url"`
	Subject      string        `yaml:"subject"`
	Username     string        `yaml:"-"`
	Password     string        `yaml:"-"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	Async        bool          `yaml:"async,omitempty"`
	QueueSize    int           `yaml:"queue_size,omitempty"`
	SinkSettings `yaml:",inline"`
}

// Override copies every field set in o over s.
func (s *Settings) Override(o *Settings) {
	if o == nil {
		return
	}
	if o.Name != nil {
		s.Name = o.Name
	}
	if o.Level != nil {
		s.Level = o.Level
	}
	if o.Format != nil {
		s.Format = o.Format
	}
	if o.Formatter != nil {
		s.Formatter = o.Formatter
	}
	if o.ConfigEnv != nil {
		s.ConfigEnv = o.ConfigEnv
	}
	if o.Console != nil {
		s.Console = o.Console
	}
	if o.File != nil {
		s.File = o.File
	}
	if o.RotatingFile != nil {
		s.RotatingFile = o.RotatingFile
	}
	if o.TimedRotatingFile != nil {
		s.TimedRotatingFile = o.TimedRotatingFile
	}
	if o.SMTP != nil {
		s.SMTP = o.SMTP
	}
	if o.HTTP != nil {
		s.HTTP = o.HTTP
	}
	if o.NATS != nil {
		s.NATS = o.NATS
	}
	if o.Context != nil {
		s.Context = o.Context
	}
	if o.UseQueue != nil {
		s.UseQueue = o.UseQueue
	}
	if o.QueueSize != nil {
		s.QueueSize = o.QueueSize
	}
	if o.UseMemoryHandler != nil {
		s.UseMemoryHandler = o.UseMemoryHandler
	}
	if o.MemoryCapacity != nil {
		s.MemoryCapacity = o.MemoryCapacity
	}
	if o.MemoryFlushLevel != nil {
		s.MemoryFlushLevel = o.MemoryFlushLevel
	}
	if o.ShutdownTimeout != nil {
		s.ShutdownTimeout = o.ShutdownTimeout
	}
}

// envNames returns the level and format variable names in effect.
func (s *Settings) envNames() (level, format string) {
	level, format = EnvLevel, EnvFormat
	if s.ConfigEnv != nil {
		if s.ConfigEnv.Level != "" {
			level = s.ConfigEnv.Level
		}
		if s.ConfigEnv.Format != "" {
			format = s.ConfigEnv.Format
		}
	}
	return level, format
}

// String, Bool, Int and Duration return pointers for building Settings
// literals.
func String(v string) *string { return &v }

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }

func Duration(v time.Duration) *time.Duration { return &v }
