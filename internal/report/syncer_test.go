package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"sam/internal/attendance"
	"sam/internal/config"
	"sam/internal/settings"
	"sam/internal/testsupport"
)

const sheet = "Sheet1"

type recordingViewer struct {
	mu    sync.Mutex
	paths []string
}

func (v *recordingViewer) View(_ context.Context, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paths = append(v.paths, path)
	return nil
}

func (v *recordingViewer) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.paths)
}

type fixture struct {
	cfg    *config.Config
	store  *attendance.Store
	clock  *testsupport.Clock
	syncer *Syncer
	viewer *recordingViewer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	src := testsupport.MustLoadSettings(t, cfg)
	clock := testsupport.NewClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local))
	store := testsupport.MustOpenStore(t, cfg, src, attendance.WithClock(clock.Now))
	viewer := &recordingViewer{}
	return &fixture{
		cfg:    cfg,
		store:  store,
		clock:  clock,
		syncer: New(cfg, store, src, WithViewer(viewer)),
		viewer: viewer,
	}
}

// writeSF2 builds a workbook with a dated header and three roster rows.
func (fx *fixture) writeSF2(t *testing.T, withHeader bool) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if withHeader {
		mustDo(t, f.SetCellValue(sheet, "D11", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
		mustDo(t, f.SetCellStr(sheet, "E11", "05/02/24"))
		mustDo(t, f.SetCellStr(sheet, "F11", "Total"))
	}
	mustDo(t, f.SetCellStr(sheet, "B14", "Alice"))
	mustDo(t, f.SetCellStr(sheet, "B15", " Bob "))
	mustDo(t, f.SetCellStr(sheet, "B16", "Carol"))
	mustDo(t, f.SetCellFormula(sheet, "D16", "1+1"))
	mustDo(t, os.MkdirAll(filepath.Dir(fx.cfg.Paths.ReportFile), 0o755))
	mustDo(t, f.SaveAs(fx.cfg.Paths.ReportFile))
}

func (fx *fixture) record(t *testing.T, name string, hour, minute int) {
	t.Helper()
	fx.clock.Set(time.Date(2024, 5, 1, hour, minute, 0, 0, time.Local))
	res, err := fx.store.Record(context.Background(), name)
	if err != nil {
		t.Fatalf("Record(%s): %v", name, err)
	}
	if res.Outcome != attendance.OutcomeSuccess {
		t.Fatalf("Record(%s) outcome = %s", name, res.Outcome)
	}
}

func (fx *fixture) cell(t *testing.T, ref string) string {
	t.Helper()
	f, err := excelize.OpenFile(fx.cfg.Paths.ReportFile)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue(%s): %v", ref, err)
	}
	return v
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdatePresenceMarksGrid(t *testing.T) {
	fx := newFixture(t)
	fx.writeSF2(t, true)
	fx.record(t, "Alice", 8, 0)
	fx.record(t, "Bob", 8, 30)

	res, err := fx.syncer.UpdatePresence(context.Background())
	if err != nil {
		t.Fatalf("UpdatePresence: %v", err)
	}
	// D14, D15 present; E14, E15, E16 absent; D16 is a formula.
	if res.Changed != 5 {
		t.Fatalf("Changed = %d, want 5", res.Changed)
	}
	want := map[string]string{"D14": "0", "D15": "0", "E14": "x", "E15": "x", "E16": "x", "F14": ""}
	for ref, value := range want {
		if got := fx.cell(t, ref); got != value {
			t.Errorf("%s = %q, want %q", ref, got, value)
		}
	}

	f, err := excelize.OpenFile(fx.cfg.Paths.ReportFile)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	formula, _ := f.GetCellFormula(sheet, "D16")
	f.Close()
	if formula != "1+1" {
		t.Fatalf("formula cell modified: %q", formula)
	}

	again, err := fx.syncer.UpdatePresence(context.Background())
	if err != nil {
		t.Fatalf("second UpdatePresence: %v", err)
	}
	if again.Changed != 0 {
		t.Fatalf("second run changed %d cells, want 0", again.Changed)
	}
	if _, err := os.Stat(fx.cfg.Paths.ReportFile + ".backup"); !os.IsNotExist(err) {
		t.Fatalf("backup file left behind: %v", err)
	}
}

func TestLateArrivalReplacesMarkerWithImage(t *testing.T) {
	fx := newFixture(t)
	testsupport.WritePNG(t, fx.cfg.Paths.LateMarkerImage, 8)
	fx.writeSF2(t, true)
	fx.record(t, "Alice", 8, 0)
	fx.record(t, "Bob", 8, 30)

	res, err := fx.syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.LateMarked != 1 {
		t.Fatalf("LateMarked = %d, want 1", res.LateMarked)
	}
	if got := fx.cell(t, "D14"); got != "0" {
		t.Fatalf("Alice D14 = %q, want 0", got)
	}
	if got := fx.cell(t, "D15"); got != "" {
		t.Fatalf("Bob D15 = %q, want cleared", got)
	}

	f, err := excelize.OpenFile(fx.cfg.Paths.ReportFile)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pics, err := f.GetPictures(sheet, "D15")
	f.Close()
	if err != nil || len(pics) != 1 {
		t.Fatalf("pictures at D15 = %d (%v), want 1", len(pics), err)
	}

	again, err := fx.syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if again.Changed != 0 || again.LateMarked != 0 {
		t.Fatalf("second Sync = %+v, want no changes", again)
	}
}

func TestLateArrivalFallsBackToComment(t *testing.T) {
	fx := newFixture(t)
	fx.writeSF2(t, true)
	fx.record(t, "Bob", 8, 30)

	if _, err := fx.syncer.UpdatePresence(context.Background()); err != nil {
		t.Fatalf("UpdatePresence: %v", err)
	}
	res, err := fx.syncer.UpdateLateArrivals(context.Background(), "08:15")
	if err != nil {
		t.Fatalf("UpdateLateArrivals: %v", err)
	}
	if res.LateMarked != 1 {
		t.Fatalf("LateMarked = %d, want 1", res.LateMarked)
	}

	f, err := excelize.OpenFile(fx.cfg.Paths.ReportFile)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	comments, err := f.GetComments(sheet)
	f.Close()
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	found := false
	for _, c := range comments {
		text := c.Text
		for _, p := range c.Paragraph {
			text += p.Text
		}
		if c.Cell == "D15" && strings.Contains(text, lateNote) {
			found = true
		}
	}
	if !found {
		t.Fatalf("no late comment at D15: %+v", comments)
	}

	again, err := fx.syncer.UpdateLateArrivals(context.Background(), "08:15")
	if err != nil || again.LateMarked != 0 {
		t.Fatalf("second UpdateLateArrivals = (%+v, %v), want no new markers", again, err)
	}
}

func TestLateArrivalsRejectsBadCutoff(t *testing.T) {
	fx := newFixture(t)
	fx.writeSF2(t, true)
	_, err := fx.syncer.UpdateLateArrivals(context.Background(), "25:00")
	var verr *settings.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestFailedEditRestoresOriginal(t *testing.T) {
	for name, hook := range map[string]func(string) error{
		"error": func(string) error { return errors.New("disk vanished") },
		"panic": func(string) error { panic("boom") },
	} {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			fx.writeSF2(t, true)
			fx.record(t, "Alice", 8, 0)
			before, err := os.ReadFile(fx.cfg.Paths.ReportFile)
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			fx.syncer.postSave = hook
			_, err = fx.syncer.UpdatePresence(context.Background())
			var integrity *FileIntegrityError
			if !errors.As(err, &integrity) || !integrity.Restored {
				t.Fatalf("error = %v, want restored FileIntegrityError", err)
			}

			after, err := os.ReadFile(fx.cfg.Paths.ReportFile)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(before, after) {
				t.Fatal("report contents changed after failed edit")
			}
			if _, err := os.Stat(fx.cfg.Paths.ReportFile + ".backup"); !os.IsNotExist(err) {
				t.Fatalf("backup file left behind: %v", err)
			}
		})
	}
}

func TestMissingReportAndEmptyHeader(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.syncer.UpdatePresence(context.Background()); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("missing file error = %v, want ErrReportNotFound", err)
	}

	fx.writeSF2(t, false)
	if _, err := fx.syncer.UpdatePresence(context.Background()); !errors.Is(err, ErrNoDates) {
		t.Fatalf("empty header error = %v, want ErrNoDates", err)
	}
	res, err := fx.syncer.UpdateLateArrivals(context.Background(), "")
	if err != nil || res.LateMarked != 0 {
		t.Fatalf("late pass without dates = (%+v, %v)", res, err)
	}
}

func TestOpenSyncsThenLaunchesViewer(t *testing.T) {
	fx := newFixture(t)
	fx.writeSF2(t, true)
	fx.record(t, "Bob", 8, 30)

	res, err := fx.syncer.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if res.LateMarked != 1 || res.Path != fx.cfg.Paths.ReportFile {
		t.Fatalf("Open result = %+v", res)
	}
	if fx.viewer.Calls() != 1 {
		t.Fatalf("viewer called %d times, want 1", fx.viewer.Calls())
	}
}

func TestOpenAbortsBeforeViewerOnFailure(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.syncer.Open(context.Background()); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("Open error = %v, want ErrReportNotFound", err)
	}
	if fx.viewer.Calls() != 0 {
		t.Fatal("viewer must not run when sync fails")
	}
}

func TestViewerCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "xdg-open"},
		{"darwin", "open"},
		{"windows", "rundll32"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		name, args := viewerCommand(tt.goos, "/tmp/report.xlsx")
		if name != tt.want || args[len(args)-1] != "/tmp/report.xlsx" {
			t.Errorf("viewerCommand(%s) = %s %v", tt.goos, name, args)
		}
	}
}

func TestHeaderRangeCoversDateColumns(t *testing.T) {
	first, _ := excelize.CoordinatesToCellName(firstDateCol, headerRow)
	last, _ := excelize.CoordinatesToCellName(lastDateCol, headerRow)
	if first != "D"+strconv.Itoa(headerRow) || last != "AB"+strconv.Itoa(headerRow) {
		t.Fatalf("header range = %s:%s", first, last)
	}
}
