package config

import (
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Supported configuration file formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatTOML = "toml"
)

// FormatForPath picks the parser from a file extension.
func FormatForPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.Errorf("unsupported config file extension %q", ext)
	}
}

// Load reads and decodes a configuration file. The format follows the
// extension: .yaml/.yml, .json or .toml.
func Load(path string) (*Settings, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	raw, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return s, nil
}

// Parse turns a document into a generic key/value tree.
func Parse(data []byte, format string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatJSON:
		if len(strings.TrimSpace(string(data))) == 0 {
			return nil, nil
		}
		err = json.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, errors.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Decode maps a parsed document onto Settings.
//
// Malformed top level values are returned as an error. A malformed sink
// section does not fail the document: the section is kept with its error
// attached so that only that sink is skipped when the pipeline is built.
func Decode(raw map[string]interface{}) (*Settings, error) {
	v := values(raw)
	s := &Settings{}
	var err error

	if s.Name, err = v.optString("name"); err != nil {
		return nil, err
	}
	if s.Level, err = v.optLevel("level"); err != nil {
		return nil, err
	}
	if s.Format, err = v.optString("fmt"); err != nil {
		return nil, err
	}
	if s.Formatter, err = v.optString("formatter"); err != nil {
		return nil, err
	}
	if sec, ok, err := v.section("config_env"); err != nil {
		return nil, err
	} else if ok {
		ce := &ConfigEnv{}
		if ce.Level, _, err = sec.str("level"); err != nil {
			return nil, errors.Wrap(err, "config_env")
		}
		if ce.Format, _, err = sec.str("format"); err != nil {
			return nil, errors.Wrap(err, "config_env")
		}
		s.ConfigEnv = ce
	}
	if s.Console, err = v.optBool("console"); err != nil {
		return nil, err
	}
	if ctx, ok, err := v.section("context"); err != nil {
		return nil, err
	} else if ok {
		s.Context = map[string]interface{}(ctx)
	}

	if s.UseQueue, err = v.optBool("use_queue"); err != nil {
		return nil, err
	}
	if s.QueueSize, err = v.optInt("queue_size"); err != nil {
		return nil, err
	}
	if s.UseMemoryHandler, err = v.optBool("use_memory_handler"); err != nil {
		return nil, err
	}
	if s.MemoryCapacity, err = v.optInt("memory_capacity"); err != nil {
		return nil, err
	}
	if s.MemoryFlushLevel, err = v.optLevel("memory_flush_level"); err != nil {
		return nil, err
	}
	if d, ok, err := v.duration("shutdown_timeout"); err != nil {
		return nil, err
	} else if ok {
		s.ShutdownTimeout = &d
	}

	if v.has("file") {
		s.File = decodeFile(v)
	}
	if v.has("rotating_file") {
		s.RotatingFile = decodeRotatingFile(v)
	}
	if v.has("timed_rotating_file") {
		s.TimedRotatingFile = decodeTimedRotatingFile(v)
	}
	if v.has("smtp_handler") {
		s.SMTP = decodeSMTP(v)
	}
	if v.has("http_handler") {
		s.HTTP = decodeHTTP(v)
	}
	if v.has("nats_handler") {
		s.NATS = decodeNATS(v)
	}
	return s, nil
}

func decodeSinkSettings(sec values) (SinkSettings, error) {
	var ss SinkSettings
	var err error
	if ss.Level, _, err = sec.level("level"); err != nil {
		return ss, err
	}
	if ss.Format, _, err = sec.str("fmt"); err != nil {
		return ss, err
	}
	if ss.Formatter, _, err = sec.str("formatter"); err != nil {
		return ss, err
	}
	return ss, nil
}

// file accepts either a bare path or a section with a filename.
func decodeFile(v values) *FileSection {
	out := &FileSection{}
	if path, ok := v["file"].(string); ok {
		out.Filename = path
		return out
	}
	sec, _, err := v.section("file")
	if err == nil {
		out.SinkSettings, err = decodeSinkSettings(sec)
	}
	if err == nil {
		out.Filename, _, err = sec.str("filename")
	}
	out.err = wrapSection("file", err)
	return out
}

func decodeRotatingFile(v values) *RotatingFileSection {
	out := &RotatingFileSection{}
	sec, _, err := v.section("rotating_file")
	if err == nil {
		out.SinkSettings, err = decodeSinkSettings(sec)
	}
	if err == nil {
		out.Filename, _, err = sec.str("filename")
	}
	if err == nil {
		out.MaxBytes, _, err = sec.size("max_bytes")
	}
	if err == nil {
		out.BackupCount, _, err = sec.integer("backup_count")
	}
	out.err = wrapSection("rotating_file", err)
	return out
}

func decodeTimedRotatingFile(v values) *TimedRotatingFileSection {
	out := &TimedRotatingFileSection{}
	sec, _, err := v.section("timed_rotating_file")
	if err == nil {
		out.SinkSettings, err = decodeSinkSettings(sec)
	}
	if err == nil {
		out.Filename, _, err = sec.str("filename")
	}
	if err == nil {
		out.When, _, err = sec.str("when")
	}
	if err == nil {
		out.Interval, _, err = sec.integer("interval")
	}
	if err == nil {
		out.BackupCount, _, err = sec.integer("backup_count")
	}
	if err == nil {
		out.UTC, _, err = sec.boolean("utc")
	}
	out.err = wrapSection("timed_rotating_file", err)
	return out
}

func decodeSMTP(v values) *SMTPSection {
	out := &SMTPSection{}
	sec, _, err := v.section("smtp_handler")
	if err == nil {
		out.SinkSettings, err = decodeSinkSettings(sec)
	}
	if err == nil {
		out.Mailhost, out.Port, err = sec.hostPort("mailhost")
	}
	if err == nil {
		out.FromAddr, _, err = sec.str("fromaddr")
	}
	if err == nil {
		out.ToAddrs, _, err = sec.strings("toaddrs")
	}
	if err == nil {
		out.Subject, _, err = sec.str("subject")
	}
	if err == nil {
		out.Username, out.Password, err = sec.credentials("credentials")
	}
	if err == nil {
		out.Secure, err = sec.flag("secure")
	}
	if err == nil {
		out.Timeout, _, err = sec.duration("timeout")
	}
	if err == nil {
		out.Async, _, err = sec.boolean("async")
	}
	if err == nil {
		out.QueueSize, _, err = sec.integer("queue_size")
	}
	out.err = wrapSection("smtp_handler", err)
	return out
}

func decodeHTTP(v values) *HTTPSection {
	out := &HTTPSection{}
	sec, _, err := v.section("http_handler")
	if err == nil {
		out.SinkSettings, err = decodeSinkSettings(sec)
	}
	if err == nil {
		out.Host, _, err = sec.str("host")
	}
	if err == nil {
		out.URL, _, err = sec.str("url")
	}
	if err == nil {
		out.Method, _, err = sec.str("method")
	}
	if err == nil {
		out.Secure, err = sec.flag("secure")
	}
	if err == nil {
		out.Headers, err = sec.stringMap("headers")
	}
	if err == nil {
		out.Timeout, _, err = sec.duration("timeout")
	}
	if err == nil {
		out.Async, _, err = sec.boolean("async")
	}
	if err == nil {
		out.QueueSize, _, err = sec.integer("queue_size")
	}
	out.err = wrapSection("http_handler", err)
	return out
}

func decodeNATS(v values) *NATSSection {
	out := &NATSSection{}
	sec, _, err := v.section("nats_handler")
	if err == nil {
		out.SinkSettings, err = decodeSinkSettings(sec)
	}
	if err == nil {
		out.URL, _, err = sec.str("url")
	}
	if err == nil {
		out.Subject, _, err = sec.str("subject")
	}
	if err == nil {
		out.Username, out.Password, err = sec.credentials("credentials")
	}
	if err == nil {
		out.Timeout, _, err = sec.duration("timeout")
	}
	if err == nil {
		out.Async, _, err = sec.boolean("async")
	}
	if err == nil {
		out.QueueSize, _, err = sec.integer("queue_size")
	}
	out.err = wrapSection("nats_handler", err)
	return out
}

func wrapSection(name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, name)
}
