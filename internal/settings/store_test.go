package settings_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sam/internal/logging"
	"sam/internal/settings"
)

func loadStore(t *testing.T, path string) *settings.Store {
	t.Helper()
	store, err := settings.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store
}

func readFile(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.json")
	store := loadStore(t, path)

	if store.Get() != settings.Defaults() {
		t.Fatalf("expected defaults, got %+v", store.Get())
	}
	onDisk := readFile(t, path)
	if len(onDisk) != len(settings.Keys()) {
		t.Fatalf("expected %d keys on disk, got %d", len(settings.Keys()), len(onDisk))
	}
	if onDisk["late_arrival_time"] != "08:15" {
		t.Fatalf("unexpected late_arrival_time on disk: %v", onDisk["late_arrival_time"])
	}
}

func TestLoadRepairsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{
		"late_arrival_time": "8:15",
		"camera_fps": 500,
		"camera_quality": "high",
		"dark_mode": true,
		"font_size": "LARGE",
		"legacy_key": 1
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got := loadStore(t, path).Get()
	if got.LateArrivalTime != "08:15" {
		t.Fatalf("expected malformed clock to revert, got %q", got.LateArrivalTime)
	}
	if got.CameraFPS != 60 {
		t.Fatalf("expected fps clamped to 60, got %d", got.CameraFPS)
	}
	if got.CameraQuality != 70 {
		t.Fatalf("expected quality default, got %d", got.CameraQuality)
	}
	if !got.DarkMode {
		t.Fatal("expected dark_mode preserved")
	}
	if got.FontSize != settings.FontLarge {
		t.Fatalf("expected font size normalized, got %q", got.FontSize)
	}

	onDisk := readFile(t, path)
	if onDisk["camera_fps"] != float64(60) {
		t.Fatalf("expected repaired file, got camera_fps=%v", onDisk["camera_fps"])
	}
	if _, ok := onDisk["legacy_key"]; ok {
		t.Fatal("expected unknown key dropped on rewrite")
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := loadStore(t, path).Get(); got != settings.Defaults() {
		t.Fatalf("expected defaults, got %+v", got)
	}
	readFile(t, path)
}

func TestSetValidatesAndClamps(t *testing.T) {
	store := loadStore(t, filepath.Join(t.TempDir(), "settings.json"))

	if err := store.Set("camera_quality", 250); err != nil {
		t.Fatalf("Set quality: %v", err)
	}
	if got := store.Get().CameraQuality; got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if err := store.Set("duplicate_scan_timeout", "0"); err != nil {
		t.Fatalf("Set timeout: %v", err)
	}
	if got := store.Get().DuplicateScanTimeout; got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
	if err := store.Set("auto_backup", "false"); err != nil {
		t.Fatalf("Set bool string: %v", err)
	}
	if store.Get().AutoBackup {
		t.Fatal("expected auto_backup false")
	}

	err := store.Set("volume", 3)
	if !errors.Is(err, settings.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	for key, value := range map[string]any{
		"late_arrival_time": "24:00",
		"font_size":         "huge",
		"camera_fps":        "fast",
		"date_format":       "plain",
		"dark_mode":         "maybe",
	} {
		err := store.Set(key, value)
		if !errors.Is(err, settings.ErrInvalidValue) {
			t.Fatalf("%s=%v: expected ErrInvalidValue, got %v", key, value, err)
		}
		var verr *settings.ValidationError
		if !errors.As(err, &verr) || verr.Key != key || verr.ErrorKind() != "validation" {
			t.Fatalf("%s: expected ValidationError for key, got %#v", key, err)
		}
	}
}

func TestSetClampsOutOfRangeNumbers(t *testing.T) {
	store := loadStore(t, filepath.Join(t.TempDir(), "settings.json"))

	cases := []struct {
		value any
		want  int
	}{
		{1e20, 60},
		{-1e20, 1},
		{"1e22", 60},
		{"-1e22", 1},
		{"99999999999999999999", 60},
		{json.Number("1e30"), 60},
		{int64(1) << 62, 60},
		{45.9, 45},
	}
	for _, tc := range cases {
		if err := store.Set("camera_fps", tc.value); err != nil {
			t.Fatalf("Set camera_fps=%v: %v", tc.value, err)
		}
		if got := store.Get().CameraFPS; got != tc.want {
			t.Fatalf("camera_fps=%v: got %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestSetNotifiesEverySubscriber(t *testing.T) {
	store := loadStore(t, filepath.Join(t.TempDir(), "settings.json"))
	var first, second []string
	store.OnChange(func(c settings.Change) { first = append(first, c.Key) })
	store.OnChange(func(c settings.Change) { second = append(second, c.Key) })

	if err := store.Set("camera_fps", 12); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != "camera_fps" || second[0] != "camera_fps" {
		t.Fatalf("expected both subscribers notified once, got %v and %v", first, second)
	}
}

func TestUpdateManyIsAllOrNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := loadStore(t, path)
	before := store.Get()

	err := store.UpdateMany(map[string]any{
		"camera_fps":        15,
		"late_arrival_time": "25:99",
	})
	if !errors.Is(err, settings.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if store.Get() != before {
		t.Fatalf("snapshot changed after failed batch: %+v", store.Get())
	}
	if readFile(t, path)["camera_fps"] != float64(30) {
		t.Fatal("file changed after failed batch")
	}

	err = store.UpdateMany(map[string]any{"camera_fps": 15, "mystery": true})
	if !errors.Is(err, settings.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if store.Get() != before {
		t.Fatal("snapshot changed after batch with unknown key")
	}

	if err := store.UpdateMany(map[string]any{"camera_fps": 15, "late_arrival_time": "07:45"}); err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	got := store.Get()
	if got.CameraFPS != 15 || got.LateArrivalTime != "07:45" {
		t.Fatalf("unexpected values after batch: %+v", got)
	}
	if got.LateCutoff() != 7*60+45 {
		t.Fatalf("unexpected cutoff minutes: %d", got.LateCutoff())
	}
}

func TestOnChangeReportsChangedKeysOnly(t *testing.T) {
	store := loadStore(t, filepath.Join(t.TempDir(), "settings.json"))

	var mu sync.Mutex
	var seen []settings.Change
	store.OnChange(func(c settings.Change) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	if err := store.UpdateMany(map[string]any{"dark_mode": true, "camera_index": 0}); err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if len(seen) != 1 || seen[0].Key != "dark_mode" || seen[0].New != true {
		t.Fatalf("unexpected changes: %+v", seen)
	}

	seen = nil
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(seen) != 1 || seen[0].Key != "dark_mode" || seen[0].New != false {
		t.Fatalf("unexpected reset changes: %+v", seen)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := loadStore(t, filepath.Join(dir, "settings.json"))
	if err := store.UpdateMany(map[string]any{"camera_index": 2, "font_size": "small"}); err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}

	exported, err := store.Export(dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	base := filepath.Base(exported)
	if !strings.HasPrefix(base, "settings_backup_") || !strings.HasSuffix(base, ".json") {
		t.Fatalf("unexpected export name %q", base)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, "settings_backup_"), ".json")
	if _, err := time.Parse("20060102_150405", stamp); err != nil {
		t.Fatalf("unexpected export timestamp %q: %v", stamp, err)
	}

	other := loadStore(t, filepath.Join(dir, "other.json"))
	applied, err := other.Import(exported)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if applied != len(settings.Keys()) {
		t.Fatalf("expected all keys applied, got %d", applied)
	}
	if other.Get() != store.Get() {
		t.Fatalf("round trip mismatch: %+v vs %+v", other.Get(), store.Get())
	}
}

func TestImportDropsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	store := loadStore(t, filepath.Join(dir, "settings.json"))

	partial := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(partial, []byte(`{"dark_mode": true, "theme": "neon"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	applied, err := store.Import(partial)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if applied != 1 || !store.Get().DarkMode {
		t.Fatalf("expected dark_mode applied, applied=%d values=%+v", applied, store.Get())
	}

	junk := filepath.Join(dir, "junk.json")
	if err := os.WriteFile(junk, []byte(`{"theme": "neon"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Import(junk); !errors.Is(err, settings.ErrNoRecognizedKeys) {
		t.Fatalf("expected ErrNoRecognizedKeys, got %v", err)
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	store := loadStore(t, filepath.Join(t.TempDir(), "settings.json"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v := store.Get()
				if v.CameraFPS < 1 || v.CameraFPS > 60 {
					t.Errorf("torn read: fps=%d", v.CameraFPS)
					return
				}
			}
		}()
	}
	for fps := 1; fps <= 20; fps++ {
		if err := store.Set("camera_fps", fps); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestValuesFormatting(t *testing.T) {
	v := settings.Defaults()
	ts := time.Date(2024, time.March, 4, 7, 5, 9, 0, time.Local)
	if got := v.FormatDate(ts); got != "03/04/24" {
		t.Fatalf("FormatDate = %q", got)
	}
	if got := v.FormatTime(ts); got != "07:05:09" {
		t.Fatalf("FormatTime = %q", got)
	}
	parsed, err := v.ParseDate("03/04/24")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if parsed.Year() != 2024 || parsed.Month() != time.March || parsed.Day() != 4 {
		t.Fatalf("unexpected parsed date %v", parsed)
	}
	if v.FrameDelay() != time.Second/30 {
		t.Fatalf("unexpected frame delay %s", v.FrameDelay())
	}
}
