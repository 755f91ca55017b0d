package features

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSizePolicy(t *testing.T) {
	p := SizePolicy{MaxBytes: 100, BackupCount: 2}

	if p.ShouldRotate(0, 500) {
		t.Error("empty file must never rotate")
	}
	if p.ShouldRotate(50, 50) {
		t.Error("exactly MaxBytes should not rotate")
	}
	if !p.ShouldRotate(50, 51) {
		t.Error("exceeding MaxBytes should rotate")
	}
	if (SizePolicy{MaxBytes: 100}).ShouldRotate(99, 10) {
		t.Error("zero backup count disables rotation")
	}
	if (SizePolicy{BackupCount: 3}).ShouldRotate(99, 10) {
		t.Error("zero max bytes disables rotation")
	}
}

func TestShiftBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	write := func(name, content string) {
		if err := os.WriteFile(name, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	read := func(name string) string {
		data, err := os.ReadFile(name)
		if err != nil {
			return "<missing>"
		}
		return string(data)
	}

	for i := 0; i < 4; i++ {
		write(path, fmt.Sprintf("gen%d", i))
		if err := ShiftBackups(path, 2); err != nil {
			t.Fatalf("ShiftBackups() error = %v", err)
		}
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("active file should have been moved away")
	}
	if got := read(path + ".1"); got != "gen3" {
		t.Errorf("backup .1 = %q, want gen3", got)
	}
	if got := read(path + ".2"); got != "gen2" {
		t.Errorf("backup .2 = %q, want gen2", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("no more than 2 backups should exist")
	}
}

func TestTimePolicy_Validate(t *testing.T) {
	tests := []struct {
		when    string
		wantErr bool
	}{
		{"s", false},
		{"M", false},
		{"h", false},
		{"D", false},
		{"midnight", false},
		{"", false},
		{"W0", false},
		{"W6", false},
		{"W7", true},
		{"fortnight", true},
	}
	for _, tt := range tests {
		t.Run(tt.when, func(t *testing.T) {
			p := TimePolicy{When: tt.when}
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimePolicy_NextRollover(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 1, 17, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		p    TimePolicy
		want time.Time
	}{
		{"seconds", TimePolicy{When: "S", Interval: 5}, now.Add(5 * time.Second)},
		{"hours", TimePolicy{When: "H", Interval: 2}, now.Add(2 * time.Hour)},
		{"days", TimePolicy{When: "D", Interval: 1}, now.Add(24 * time.Hour)},
		{"midnight", TimePolicy{When: "MIDNIGHT"}, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)},
		{"midnight interval 2", TimePolicy{When: "MIDNIGHT", Interval: 2}, time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)},
		{"weekly same day", TimePolicy{When: "W2"}, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)},
		{"weekly later", TimePolicy{When: "W4"}, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		{"weekly wraps", TimePolicy{When: "W0"}, time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			p.UTC = true
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := p.NextRollover(now); !got.Equal(tt.want) {
				t.Errorf("NextRollover() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimePolicy_BackupsAndPrune(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	p := TimePolicy{When: "S", BackupCount: 2, UTC: true}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	var rotated []string
	for i := 0; i < 4; i++ {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("gen%d", i)), 0644); err != nil {
			t.Fatal(err)
		}
		name := p.BackupName(path, base.Add(time.Duration(i+1)*time.Second))
		got, err := RotateTo(path, name)
		if err != nil {
			t.Fatalf("RotateTo() error = %v", err)
		}
		rotated = append(rotated, got)
	}
	if filepath.Base(rotated[0]) != "app.log.2024-01-17_10-00-00" {
		t.Errorf("unexpected backup name %s", rotated[0])
	}

	removed, err := PruneBackups(path, p.BackupPattern("app.log"), p.BackupCount)
	if err != nil {
		t.Fatalf("PruneBackups() error = %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d files, want 2", len(removed))
	}
	for _, keep := range rotated[2:] {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("newest backup %s should be kept", keep)
		}
	}
	for _, gone := range rotated[:2] {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("oldest backup %s should be removed", gone)
		}
	}
}

func TestRotateToAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	target := path + ".2024-01-17"

	for i := 0; i < 2; i++ {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("gen%d", i)), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := RotateTo(path, target); err != nil {
			t.Fatalf("RotateTo() error = %v", err)
		}
	}

	first, _ := os.ReadFile(target)
	second, _ := os.ReadFile(target + ".1")
	if string(first) != "gen0" || string(second) != "gen1" {
		t.Errorf("backups = %q, %q", first, second)
	}
}

func TestPruneBackupsOrdersCollisionsNumerically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	p := TimePolicy{When: "D", Interval: 1, BackupCount: 3}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}

	// Twelve rotations inside one period: the bare name, then .1 .. .11.
	target := path + ".2024-01-17"
	var rotated []string
	for i := 0; i < 12; i++ {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("gen%d", i)), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := RotateTo(path, target)
		if err != nil {
			t.Fatalf("RotateTo() error = %v", err)
		}
		rotated = append(rotated, got)
	}
	older := path + ".2024-01-16"
	if err := os.WriteFile(older, []byte("yesterday"), 0644); err != nil {
		t.Fatal(err)
	}

	removed, err := PruneBackups(path, p.BackupPattern("app.log"), p.BackupCount)
	if err != nil {
		t.Fatalf("PruneBackups() error = %v", err)
	}
	if len(removed) != 10 {
		t.Fatalf("removed %d files, want 10", len(removed))
	}
	for _, keep := range rotated[9:] {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("newest backup %s should be kept", filepath.Base(keep))
		}
	}
	stale := append(append([]string(nil), rotated[:9]...), older)
	for _, gone := range stale {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("backup %s should be removed", filepath.Base(gone))
		}
	}
}
