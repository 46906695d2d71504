// Package sheet implements the tracking document: an xlsx worksheet holding one
// row per application, mutated in place and flushed to disk after every change.
package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/directive"
)

// NoteColumn is the companion column receiving the note of a directive.
const NoteColumn = 5

// defaultMode is the mode of workbooks created by Create.
const defaultMode os.FileMode = 0o644

// Document is a worksheet loaded from an xlsx workbook.
type Document struct {
	mu sync.Mutex

	path   string
	sheet  string
	file   *excelize.File
	styles map[Style]int
	logger *zap.Logger
}

// Open loads the workbook at path. An empty sheetName selects the first worksheet.
func Open(path, sheetName string, logger *zap.Logger) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open tracking document %q: %w", path, err)
	}

	name, err := resolveSheet(f, sheetName)
	if err != nil {
		f.Close()
		return nil, err
	}

	return newDocument(path, name, f, logger), nil
}

// Create writes a new workbook with the given rows to path and returns it opened.
func Create(path, sheetName string, rows [][]string, logger *zap.Logger) (*Document, error) {
	f := excelize.NewFile()

	name := f.GetSheetName(0)
	if sheetName = strings.TrimSpace(sheetName); sheetName != "" && sheetName != name {
		if err := f.SetSheetName(name, sheetName); err != nil {
			return nil, fmt.Errorf("rename worksheet: %w", err)
		}
		name = sheetName
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := cellName(r, c)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStr(name, cell, value); err != nil {
				return nil, fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}

	d := newDocument(path, name, f, logger)
	if err := d.flush(); err != nil {
		return nil, err
	}

	return d, nil
}

func newDocument(path, sheet string, f *excelize.File, logger *zap.Logger) *Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{
		path:   path,
		sheet:  sheet,
		file:   f,
		styles: make(map[Style]int),
		logger: logger.With(zap.String("document", path), zap.String("worksheet", sheet)),
	}
}

func resolveSheet(f *excelize.File, name string) (string, error) {
	list := f.GetSheetList()
	if len(list) == 0 {
		return "", errors.New("workbook has no worksheets")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return list[0], nil
	}
	if !slices.Contains(list, name) {
		return "", fmt.Errorf("worksheet %q not found, available: %s", name, strings.Join(list, ", "))
	}
	return name, nil
}

// Path returns the location the document is flushed to.
func (d *Document) Path() string {
	return d.path
}

// Snapshot serialises every non-empty cell in row-major order for use as
// classification context.
func (d *Document) Snapshot() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.file.GetRows(d.sheet)
	if err != nil {
		return "", fmt.Errorf("read rows: %w", err)
	}

	var b strings.Builder
	for r, row := range rows {
		for c, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			fmt.Fprintf(&b, "Column:%d, Row:%d, Value: %s\n", c, r, value)
		}
	}

	return b.String(), nil
}

// Bounds returns the number of rows with content and the width of the widest row.
func (d *Document) Bounds() (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.bounds()
}

func (d *Document) bounds() (int, int, error) {
	rows, err := d.file.GetRows(d.sheet)
	if err != nil {
		return 0, 0, fmt.Errorf("read rows: %w", err)
	}

	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}

	return len(rows), cols, nil
}

func (d *Document) checkBounds(row, col int) error {
	if row < 0 || col < 0 {
		return &BoundsError{Row: row, Column: col}
	}

	rows, cols, err := d.bounds()
	if err != nil {
		return err
	}
	if row >= rows || col >= cols {
		return &BoundsError{Row: row, Column: col, Rows: rows, Columns: cols}
	}

	return nil
}

// ReadCell returns the text of a cell. Cells beyond the content read as empty.
func (d *Document) ReadCell(row, col int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cell, err := cellName(row, col)
	if err != nil {
		return "", err
	}

	return d.file.GetCellValue(d.sheet, cell)
}

// StyleAt returns the style tag of a cell, StyleNone for unstyled cells or
// fills that do not belong to the palette.
func (d *Document) StyleAt(row, col int) (Style, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cell, err := cellName(row, col)
	if err != nil {
		return StyleNone, err
	}

	id, err := d.file.GetCellStyle(d.sheet, cell)
	if err != nil {
		return StyleNone, fmt.Errorf("get style of %s: %w", cell, err)
	}
	if id == 0 {
		return StyleNone, nil
	}

	for style, known := range d.styles {
		if known == id {
			return style, nil
		}
	}

	st, err := d.file.GetStyle(id)
	if err != nil {
		return StyleNone, fmt.Errorf("get style %d: %w", id, err)
	}
	if st == nil || len(st.Fill.Color) == 0 {
		return StyleNone, nil
	}

	return styleByColor(st.Fill.Color[0]), nil
}

// WriteCell sets a cell value and style inside the current bounds and flushes.
func (d *Document) WriteCell(row, col int, value string, style Style) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkBounds(row, col); err != nil {
		return err
	}

	if err := d.setCell(row, col, value, style); err != nil {
		return err
	}

	return d.flush()
}

// Apply writes the outcome of a directive with its style and, when present, the
// note into NoteColumn of the same row. The document is flushed before Apply
// returns. Unresolved or out-of-bounds coordinates yield a *BoundsError and no
// change.
func (d *Document) Apply(dir directive.Directive) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkBounds(dir.Row, dir.Column); err != nil {
		return err
	}

	if err := d.setCell(dir.Row, dir.Column, dir.Outcome.String(), StyleFor(dir.Outcome)); err != nil {
		return err
	}

	if dir.HasNote {
		if err := d.setValue(dir.Row, NoteColumn, dir.Note); err != nil {
			return err
		}
	}

	if err := d.flush(); err != nil {
		return err
	}

	d.logger.Debug("directive applied",
		zap.Int("row", dir.Row),
		zap.Int("column", dir.Column),
		zap.String("outcome", dir.Outcome.String()),
		zap.Bool("note", dir.HasNote),
	)

	return nil
}

// ReloadFrom replaces the in-memory workbook with the copy at path. Later
// flushes still go to the document's own path.
func (d *Document) ReloadFrom(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("reload tracking document from %q: %w", path, err)
	}

	if _, err := resolveSheet(f, d.sheet); err != nil {
		f.Close()
		return err
	}

	old := d.file
	d.file = f
	d.styles = make(map[Style]int)

	if err := old.Close(); err != nil {
		d.logger.Warn("closing previous workbook", zap.Error(err))
	}

	d.logger.Debug("tracking document reloaded", zap.String("source", path))
	return nil
}

// Close releases the workbook.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.file.Close()
}

func (d *Document) setCell(row, col int, value string, style Style) error {
	if err := d.setValue(row, col, value); err != nil {
		return err
	}

	cell, err := cellName(row, col)
	if err != nil {
		return err
	}

	id, err := d.styleID(style)
	if err != nil {
		return err
	}

	if err := d.file.SetCellStyle(d.sheet, cell, cell, id); err != nil {
		return fmt.Errorf("set style of %s: %w", cell, err)
	}

	return nil
}

func (d *Document) setValue(row, col int, value string) error {
	cell, err := cellName(row, col)
	if err != nil {
		return err
	}

	if err := d.file.SetCellStr(d.sheet, cell, value); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}

	return nil
}

func (d *Document) styleID(style Style) (int, error) {
	if style == StyleNone {
		return 0, nil
	}

	if id, ok := d.styles[style]; ok {
		return id, nil
	}

	color, ok := palette[style]
	if !ok {
		return 0, fmt.Errorf("unknown style %q", style)
	}

	id, err := d.file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#" + color}},
	})
	if err != nil {
		return 0, fmt.Errorf("create style %q: %w", style, err)
	}

	d.styles[style] = id
	return id, nil
}

// flush writes the workbook next to its destination and renames it into place
// so a crash never leaves a truncated file behind.
func (d *Document) flush() error {
	dir := filepath.Dir(d.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+"-*")
	if err != nil {
		return &StorageError{Path: d.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := d.file.Write(tmp); err != nil {
		tmp.Close()
		return &StorageError{Path: d.path, Err: err}
	}

	// CreateTemp makes the file 0600, keep the mode of the replaced workbook.
	mode := defaultMode
	if info, err := os.Stat(d.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return &StorageError{Path: d.path, Err: err}
	}

	if err := tmp.Close(); err != nil {
		return &StorageError{Path: d.path, Err: err}
	}

	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return &StorageError{Path: d.path, Err: err}
	}

	return nil
}

// cellName converts zero-based coordinates to an A1 reference.
func cellName(row, col int) (string, error) {
	if row < 0 || col < 0 {
		return "", &BoundsError{Row: row, Column: col}
	}
	return excelize.CoordinatesToCellName(col+1, row+1)
}
