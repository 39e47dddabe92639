package report

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "image/png"

	"github.com/xuri/excelize/v2"

	"sam/internal/attendance"
	"sam/internal/logging"
	"sam/internal/settings"
)

type dateColumn struct {
	col  int
	date string
}

type editor struct {
	s      *Syncer
	f      *excelize.File
	sheet  string
	values settings.Values
	dates  []dateColumn
	times  map[attendance.Key]string

	comments map[string]bool
	styles   map[styleKey]int
}

type styleKey struct {
	base    int
	variant string
}

// edit opens the workbook, applies fn, and saves and re-opens it when fn
// changed anything.
func (s *Syncer) edit(ctx context.Context, requireDates bool, fn func(*editor) (int, error)) (int, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	closed := false
	closeFile := func() error {
		if closed {
			return nil
		}
		closed = true
		return f.Close()
	}
	defer closeFile()

	ed := &editor{
		s:      s,
		f:      f,
		sheet:  f.GetSheetName(f.GetActiveSheetIndex()),
		values: s.settings.Get(),
		styles: make(map[styleKey]int),
	}
	ed.dates = ed.readHeader()
	if len(ed.dates) == 0 {
		if requireDates {
			return 0, ErrNoDates
		}
		return 0, nil
	}
	keys := make([]string, 0, len(ed.dates))
	for _, dc := range ed.dates {
		keys = append(keys, dc.date)
	}
	if ed.times, err = s.store.Lookup(ctx, keys); err != nil {
		return 0, err
	}
	if ed.comments, err = ed.commentCells(); err != nil {
		return 0, err
	}

	changed, err := fn(ed)
	if err != nil || changed == 0 {
		return 0, err
	}
	if err := f.Save(); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	if err := closeFile(); err != nil {
		return 0, fmt.Errorf("close workbook: %w", err)
	}
	if s.postSave != nil {
		if err := s.postSave(s.path); err != nil {
			return 0, err
		}
	}
	check, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("verify saved workbook: %w", err)
	}
	_ = check.Close()
	return changed, nil
}

func (ed *editor) readHeader() []dateColumn {
	var out []dateColumn
	for col := firstDateCol; col <= lastDateCol; col++ {
		cell, err := excelize.CoordinatesToCellName(col, headerRow)
		if err != nil {
			continue
		}
		if date, ok := ed.headerDate(cell); ok {
			out = append(out, dateColumn{col: col, date: date})
		}
	}
	return out
}

// headerDate accepts date-typed cells, date-styled serials, and strings in
// the configured date format.
func (ed *editor) headerDate(cell string) (string, bool) {
	raw, err := ed.f.GetCellValue(ed.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if typ, err := ed.f.GetCellType(ed.sheet, cell); err == nil && typ == excelize.CellTypeDate {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return ed.values.FormatDate(t), true
			}
		}
	}
	if ed.isDateStyled(cell) {
		if serial, err := strconv.ParseFloat(raw, 64); err == nil {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return ed.values.FormatDate(t), true
			}
		}
	}
	if t, err := ed.values.ParseDate(raw); err == nil {
		return ed.values.FormatDate(t), true
	}
	return "", false
}

func (ed *editor) isDateStyled(cell string) bool {
	id, err := ed.f.GetCellStyle(ed.sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	style, err := ed.f.GetStyle(id)
	if err != nil {
		return false
	}
	if style.CustomNumFmt != nil {
		format := strings.ToLower(*style.CustomNumFmt)
		return strings.ContainsAny(format, "dy") || strings.Contains(format, "mmm")
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	return false
}

// rows visits every named roster row.
func (ed *editor) rows(fn func(row int, name string) error) error {
	for _, span := range rosterSections {
		for row := span.first; row <= span.last; row++ {
			cell, _ := excelize.CoordinatesToCellName(nameCol, row)
			value, err := ed.f.GetCellValue(ed.sheet, cell)
			if err != nil {
				return fmt.Errorf("read %s: %w", cell, err)
			}
			name := attendance.NormalizeName(value)
			if name == "" {
				continue
			}
			if err := fn(row, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ed *editor) isFormula(cell string) bool {
	formula, err := ed.f.GetCellFormula(ed.sheet, cell)
	return err == nil && formula != ""
}

func (ed *editor) rawValue(cell string) string {
	v, _ := ed.f.GetCellValue(ed.sheet, cell, excelize.Options{RawCellValue: true})
	return strings.TrimSpace(v)
}

func (ed *editor) markPresence() (int, error) {
	changed := 0
	err := ed.rows(func(row int, name string) error {
		for _, dc := range ed.dates {
			cell, _ := excelize.CoordinatesToCellName(dc.col, row)
			if ed.isFormula(cell) {
				continue
			}
			_, present := ed.times[attendance.Key{Date: dc.date, Name: name}]
			current := ed.rawValue(cell)
			if present {
				// A cleared, flagged cell is the settled late state.
				if current == strconv.Itoa(presentMarker) || (current == "" && ed.hasLateMarker(cell)) {
					continue
				}
				if err := ed.f.SetCellValue(ed.sheet, cell, presentMarker); err != nil {
					return fmt.Errorf("write %s: %w", cell, err)
				}
			} else {
				if current == absentMarker {
					continue
				}
				if err := ed.f.SetCellStr(ed.sheet, cell, absentMarker); err != nil {
					return fmt.Errorf("write %s: %w", cell, err)
				}
				if err := ed.restyle(cell, "absent", func(st *excelize.Style) {
					if st.Font == nil {
						st.Font = &excelize.Font{}
					}
					st.Font.Color = "000000"
				}); err != nil {
					return err
				}
			}
			changed++
		}
		return nil
	})
	return changed, err
}

func (ed *editor) markLate(cutoffMinutes int) (int, error) {
	marked := 0
	err := ed.rows(func(row int, name string) error {
		for _, dc := range ed.dates {
			recorded, ok := ed.times[attendance.Key{Date: dc.date, Name: name}]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(dc.col, row)
			if ed.isFormula(cell) {
				continue
			}
			at, err := ed.values.ParseTime(recorded)
			if err != nil {
				ed.s.logger.Debug("unparseable attendance time",
					logging.String("name", name),
					logging.String(logging.FieldDate, dc.date),
					logging.String("time", recorded),
				)
				continue
			}
			if at.Hour()*3600+at.Minute()*60+at.Second() <= cutoffMinutes*60 {
				continue
			}
			flagged := ed.hasLateMarker(cell)
			if flagged && ed.rawValue(cell) == "" {
				continue
			}
			if err := ed.f.SetCellValue(ed.sheet, cell, nil); err != nil {
				return fmt.Errorf("clear %s: %w", cell, err)
			}
			if err := ed.restyle(cell, "general", func(st *excelize.Style) {
				st.NumFmt = 0
				st.CustomNumFmt = nil
			}); err != nil {
				return err
			}
			if !flagged {
				if err := ed.addLateMarker(cell); err != nil {
					return err
				}
			}
			marked++
		}
		return nil
	})
	return marked, err
}

func (ed *editor) hasLateMarker(cell string) bool {
	if ed.comments[cell] {
		return true
	}
	pics, err := ed.f.GetPictures(ed.sheet, cell)
	return err == nil && len(pics) > 0
}

// addLateMarker anchors the marker image at cell, falling back to a
// top-left border plus comment.
func (ed *editor) addLateMarker(cell string) error {
	if img := ed.s.markerImage; img != "" {
		if _, err := os.Stat(img); err == nil {
			picErr := ed.f.AddPicture(ed.sheet, cell, img, &excelize.GraphicOptions{
				OffsetX:     1,
				OffsetY:     1,
				AltText:     lateNote,
				Positioning: "oneCell",
			})
			if picErr == nil {
				return nil
			}
			ed.s.logger.Warn("late marker image not inserted; using border",
				logging.String("cell", cell),
				logging.Error(picErr),
			)
		} else {
			ed.s.logger.Debug("late marker image unavailable", logging.String("path", img), logging.Error(err))
		}
	}

	if err := ed.restyle(cell, "late-border", func(st *excelize.Style) {
		st.Border = append(st.Border,
			excelize.Border{Type: "top", Color: "000000", Style: 1},
			excelize.Border{Type: "left", Color: "000000", Style: 1},
		)
	}); err != nil {
		return err
	}
	if err := ed.f.AddComment(ed.sheet, excelize.Comment{Cell: cell, Author: commentAuthor, Text: lateNote}); err != nil {
		return fmt.Errorf("comment %s: %w", cell, err)
	}
	ed.comments[cell] = true
	return nil
}

func (ed *editor) commentCells() (map[string]bool, error) {
	comments, err := ed.f.GetComments(ed.sheet)
	if err != nil {
		return nil, fmt.Errorf("read comments: %w", err)
	}
	out := make(map[string]bool, len(comments))
	for _, c := range comments {
		text := c.Text
		for _, p := range c.Paragraph {
			text += p.Text
		}
		if strings.Contains(text, lateNote) {
			out[c.Cell] = true
		}
	}
	return out, nil
}

// restyle derives a new style from the cell's current one, caching per
// (base, variant) so repeated edits share a style ID.
func (ed *editor) restyle(cell, variant string, mutate func(*excelize.Style)) error {
	base, err := ed.f.GetCellStyle(ed.sheet, cell)
	if err != nil {
		return fmt.Errorf("read style %s: %w", cell, err)
	}
	key := styleKey{base: base, variant: variant}
	id, ok := ed.styles[key]
	if !ok {
		style, err := ed.f.GetStyle(base)
		if err != nil {
			return fmt.Errorf("load style %d: %w", base, err)
		}
		mutate(style)
		if id, err = ed.f.NewStyle(style); err != nil {
			return fmt.Errorf("create style: %w", err)
		}
		ed.styles[key] = id
	}
	return ed.f.SetCellStyle(ed.sheet, cell, cell, id)
}
