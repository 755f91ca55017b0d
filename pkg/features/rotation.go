package features

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SizePolicy rotates a file once appending the next entry would push it past
// MaxBytes. BackupCount numbered backups (path.1 .. path.N) are retained, path.1
// being the most recent. A zero MaxBytes or BackupCount disables rotation.
type SizePolicy struct {
	MaxBytes    int64
	BackupCount int
}

// Enabled reports whether the policy ever rotates.
func (p SizePolicy) Enabled() bool {
	return p.MaxBytes > 0 && p.BackupCount > 0
}

// ShouldRotate reports whether a file currently holding size bytes must be
// rotated before incoming more bytes are appended. An empty file is never
// rotated, so an entry larger than MaxBytes still lands in exactly one file.
func (p SizePolicy) ShouldRotate(size, incoming int64) bool {
	if !p.Enabled() || size == 0 {
		return false
	}
	return size+incoming > p.MaxBytes
}

// ShiftBackups renames path.N-1 to path.N ... path to path.1, discarding the
// oldest backup. The active file no longer exists when it returns.
func ShiftBackups(path string, backupCount int) error {
	cleanPath := filepath.Clean(path)
	for i := backupCount - 1; i > 0; i-- {
		src := fmt.Sprintf("%s.%d", cleanPath, i)
		dst := fmt.Sprintf("%s.%d", cleanPath, i+1)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", dst, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("rotating %s: %w", src, err)
		}
	}

	first := cleanPath + ".1"
	if err := os.Remove(first); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", first, err)
	}
	if err := os.Rename(cleanPath, first); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotating log: %w", err)
	}
	return nil
}

// Rotation units accepted by TimePolicy.When.
const (
	WhenSecond   = "S"
	WhenMinute   = "M"
	WhenHour     = "H"
	WhenDay      = "D"
	WhenMidnight = "MIDNIGHT"
)

const day = 24 * time.Hour

// TimePolicy rotates a file at wall clock boundaries.
//
// When is one of S, M, H, D, MIDNIGHT or W0-W6 (W0 is Monday). Interval
// multiplies the unit; for weekly rotation it is ignored. Backups are named
// path.<timestamp> and at most BackupCount of them are kept (0 keeps all).
type TimePolicy struct {
	When        string
	Interval    int
	BackupCount int
	UTC         bool

	weekday int
}

// Validate normalizes the policy and reports unsupported settings.
func (p *TimePolicy) Validate() error {
	p.When = strings.ToUpper(strings.TrimSpace(p.When))
	if p.When == "" {
		p.When = WhenMidnight
	}
	if p.Interval <= 0 {
		p.Interval = 1
	}
	if p.BackupCount < 0 {
		return fmt.Errorf("backup_count must not be negative, got %d", p.BackupCount)
	}
	switch p.When {
	case WhenSecond, WhenMinute, WhenHour, WhenDay, WhenMidnight:
		return nil
	}
	if len(p.When) == 2 && p.When[0] == 'W' {
		d, err := strconv.Atoi(p.When[1:])
		if err == nil && d >= 0 && d <= 6 {
			p.weekday = d
			return nil
		}
	}
	return fmt.Errorf("invalid rollover interval specified: %q", p.When)
}

// Period is the length of one rotation interval.
func (p TimePolicy) Period() time.Duration {
	n := time.Duration(p.Interval)
	switch p.When {
	case WhenSecond:
		return n * time.Second
	case WhenMinute:
		return n * time.Minute
	case WhenHour:
		return n * time.Hour
	case WhenDay, WhenMidnight:
		return n * day
	default:
		return 7 * day
	}
}

func (p TimePolicy) layout() string {
	switch p.When {
	case WhenSecond:
		return "2006-01-02_15-04-05"
	case WhenMinute:
		return "2006-01-02_15-04"
	case WhenHour:
		return "2006-01-02_15"
	default:
		return "2006-01-02"
	}
}

func (p TimePolicy) suffixPattern() string {
	switch p.When {
	case WhenSecond:
		return `\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}`
	case WhenMinute:
		return `\d{4}-\d{2}-\d{2}_\d{2}-\d{2}`
	case WhenHour:
		return `\d{4}-\d{2}-\d{2}_\d{2}`
	default:
		return `\d{4}-\d{2}-\d{2}`
	}
}

func (p TimePolicy) in(t time.Time) time.Time {
	if p.UTC {
		return t.UTC()
	}
	return t.Local()
}

// NextRollover returns the first rotation instant strictly after t.
func (p TimePolicy) NextRollover(t time.Time) time.Time {
	t = p.in(t)
	switch p.When {
	case WhenSecond, WhenMinute, WhenHour, WhenDay:
		return t.Add(p.Period())
	}

	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	if p.When == WhenMidnight {
		return midnight.AddDate(0, 0, p.Interval-1)
	}

	// Weekly: rotate at the end of the configured weekday, Monday being 0.
	today := (int(t.Weekday()) + 6) % 7
	wait := 0
	if today != p.weekday {
		wait = (p.weekday - today + 7) % 7
	}
	return midnight.AddDate(0, 0, wait)
}

// BackupName returns the name a file covering the period that ends at
// rolloverAt is rotated to.
func (p TimePolicy) BackupName(path string, rolloverAt time.Time) string {
	start := p.in(rolloverAt.Add(-p.Period()))
	return filepath.Clean(path) + "." + start.Format(p.layout())
}

// RotateTo renames path to target. When target already exists a numeric
// suffix is appended so earlier backups are never overwritten.
func RotateTo(path, target string) (string, error) {
	dst := target
	for i := 1; ; i++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			break
		}
		dst = fmt.Sprintf("%s.%d", target, i)
	}
	if err := os.Rename(filepath.Clean(path), dst); err != nil {
		return "", fmt.Errorf("rotating log: %w", err)
	}
	return dst, nil
}

// BackupPattern matches the backup file names produced for base.
func (p TimePolicy) BackupPattern(base string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^%s\.(%s(?:\.\d+)?)$`, regexp.QuoteMeta(base), p.suffixPattern()))
}

// PruneBackups removes the oldest files next to path whose names match
// pattern until at most keep remain. It returns the removed paths.
func PruneBackups(path string, pattern *regexp.Regexp, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	dir := filepath.Dir(path)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading log directory: %w", err)
	}

	type logFile struct {
		path  string
		stamp string
		seq   int // collision suffix, 0 for the first backup of a period
	}
	var logFiles []logFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := pattern.FindStringSubmatch(file.Name())
		if len(matches) != 2 {
			continue
		}
		lf := logFile{path: filepath.Join(dir, file.Name()), stamp: matches[1]}
		if stamp, seq, ok := strings.Cut(matches[1], "."); ok {
			n, err := strconv.Atoi(seq)
			if err != nil {
				continue
			}
			lf.stamp, lf.seq = stamp, n
		}
		logFiles = append(logFiles, lf)
	}

	// Newest first: later periods, then higher collision numbers.
	sort.Slice(logFiles, func(i, j int) bool {
		if logFiles[i].stamp != logFiles[j].stamp {
			return logFiles[i].stamp > logFiles[j].stamp
		}
		return logFiles[i].seq > logFiles[j].seq
	})

	var removed []string
	for i := keep; i < len(logFiles); i++ {
		if err := os.Remove(logFiles[i].path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing %s: %w", logFiles[i].path, err)
		}
		removed = append(removed, logFiles[i].path)
	}
	return removed, nil
}
