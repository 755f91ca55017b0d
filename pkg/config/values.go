package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/logpipe/pkg/types"
)

// values is a parsed document or section. YAML, JSON and TOML parsers
// disagree on numeric types, so every accessor normalizes.
type values map[string]interface{}

func (v values) has(key string) bool {
	val, ok := v[key]
	return ok && val != nil
}

func (v values) str(key string) (string, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return "", false, nil
	}
	switch x := val.(type) {
	case string:
		return x, true, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(x), true, nil
	}
	return "", false, errors.Errorf("%s: expected a string, got %T", key, val)
}

func (v values) optString(key string) (*string, error) {
	s, ok, err := v.str(key)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (v values) integer(key string) (int, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return 0, false, nil
	}
	n, err := toInt(val)
	if err != nil {
		return 0, false, errors.Wrap(err, key)
	}
	return int(n), true, nil
}

func (v values) optInt(key string) (*int, error) {
	n, ok, err := v.integer(key)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func (v values) boolean(key string) (bool, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return false, false, nil
	}
	switch x := val.(type) {
	case bool:
		return x, true, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, false, errors.Errorf("%s: expected a boolean, got %q", key, x)
		}
		return b, true, nil
	}
	return false, false, errors.Errorf("%s: expected a boolean, got %T", key, val)
}

func (v values) optBool(key string) (*bool, error) {
	b, ok, err := v.boolean(key)
	if err != nil || !ok {
		return nil, err
	}
	return &b, nil
}

// flag accepts a boolean or a list; any list, even an empty one, counts
// as true.
func (v values) flag(key string) (bool, error) {
	if _, ok := v[key].([]interface{}); ok {
		return true, nil
	}
	b, _, err := v.boolean(key)
	return b, err
}

// level accepts a level name or number and returns it in canonical form.
func (v values) level(key string) (string, bool, error) {
	s, ok, err := v.str(key)
	if err != nil || !ok {
		return "", false, err
	}
	l, err := types.ParseLevel(s)
	if err != nil {
		return "", false, errors.Wrap(err, key)
	}
	return l.String(), true, nil
}

func (v values) optLevel(key string) (*string, error) {
	s, ok, err := v.level(key)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// duration accepts a Go duration string or a number of seconds.
func (v values) duration(key string) (time.Duration, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return 0, false, nil
	}
	if s, isString := val.(string); isString {
		if d, err := time.ParseDuration(s); err == nil {
			return d, true, nil
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, errors.Errorf("%s: invalid duration %q", key, s)
		}
		return time.Duration(secs * float64(time.Second)), true, nil
	}
	secs, err := toFloat(val)
	if err != nil {
		return 0, false, errors.Wrap(err, key)
	}
	return time.Duration(secs * float64(time.Second)), true, nil
}

// size accepts a byte count or a humanized size such as "10MB".
func (v values) size(key string) (int64, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return 0, false, nil
	}
	if s, isString := val.(string); isString {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return 0, false, errors.Wrap(err, key)
		}
		if n > math.MaxInt64 {
			return 0, false, errors.Errorf("%s: %q is too large", key, s)
		}
		return int64(n), true, nil
	}
	n, err := toInt(val)
	if err != nil {
		return 0, false, errors.Wrap(err, key)
	}
	return n, true, nil
}

// strings accepts a single string or a list of strings.
func (v values) strings(key string) ([]string, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return nil, false, nil
	}
	switch x := val.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true, nil
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, isString := item.(string)
			if !isString {
				return nil, false, errors.Errorf("%s: expected strings, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, true, nil
	}
	return nil, false, errors.Errorf("%s: expected a string or a list, got %T", key, val)
}

func (v values) section(key string) (values, bool, error) {
	val, ok := v[key]
	if !ok || val == nil {
		return values{}, false, nil
	}
	m, isMap := val.(map[string]interface{})
	if !isMap {
		return values{}, false, errors.Errorf("%s: expected a mapping, got %T", key, val)
	}
	return values(m), true, nil
}

func (v values) stringMap(key string) (map[string]string, error) {
	sec, ok, err := v.section(key)
	if err != nil || !ok {
		return nil, err
	}
	out := make(map[string]string, len(sec))
	for k, val := range sec {
		out[k] = fmt.Sprint(val)
	}
	return out, nil
}

// hostPort accepts "host", "host:port" or a [host, port] pair.
func (v values) hostPort(key string) (string, int, error) {
	if pair, ok := v[key].([]interface{}); ok {
		if len(pair) != 2 {
			return "", 0, errors.Errorf("%s: expected [host, port]", key)
		}
		host, ok := pair[0].(string)
		if !ok {
			return "", 0, errors.Errorf("%s: host must be a string", key)
		}
		port, err := toInt(pair[1])
		if err != nil {
			return "", 0, errors.Wrapf(err, "%s port", key)
		}
		return host, int(port), nil
	}
	s, _, err := v.str(key)
	if err != nil {
		return "", 0, err
	}
	if i := strings.LastIndex(s, ":"); i > 0 {
		port, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return "", 0, errors.Errorf("%s: invalid port in %q", key, s)
		}
		return s[:i], port, nil
	}
	return s, 0, nil
}

// credentials accepts a [username, password] pair or a mapping with
// username and password keys.
func (v values) credentials(key string) (string, string, error) {
	switch x := v[key].(type) {
	case nil:
		return "", "", nil
	case []interface{}:
		if len(x) != 2 {
			return "", "", errors.Errorf("%s: expected [username, password]", key)
		}
		user, ok1 := x[0].(string)
		pass, ok2 := x[1].(string)
		if !ok1 || !ok2 {
			return "", "", errors.Errorf("%s: username and password must be strings", key)
		}
		return user, pass, nil
	case map[string]interface{}:
		sec := values(x)
		user, _, err := sec.str("username")
		if err != nil {
			return "", "", errors.Wrap(err, key)
		}
		pass, _, err := sec.str("password")
		if err != nil {
			return "", "", errors.Wrap(err, key)
		}
		return user, pass, nil
	default:
		return "", "", errors.Errorf("%s: expected a pair or a mapping, got %T", key, x)
	}
}

func toInt(val interface{}) (int64, error) {
	switch x := val.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, errors.Errorf("%d is out of range", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.Errorf("expected an integer, got %v", x)
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, errors.Errorf("expected an integer, got %q", x)
		}
		return n, nil
	}
	return 0, errors.Errorf("expected an integer, got %T", val)
}

func toFloat(val interface{}) (float64, error) {
	switch x := val.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, errors.Errorf("expected a number, got %T", val)
}
