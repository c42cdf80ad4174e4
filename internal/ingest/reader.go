// Package ingest reduces an uploaded statement file to the text sample sent to the
// extraction model.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFile is returned for binary formats that cannot be reduced to text.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrInvalidFile is returned when a spreadsheet or CSV cannot be parsed.
	ErrInvalidFile = errors.New("invalid file")
)

// Defaults for Options.
const (
	DefaultTextLimit = 5000
	DefaultRowLimit  = 50
)

// Options bounds how much of a file reaches the model.
type Options struct {
	TextLimit int // bytes kept from plain text uploads
	RowLimit  int // data rows kept from tables, header excluded
}

func (o Options) withDefaults() Options {
	if o.TextLimit <= 0 {
		o.TextLimit = DefaultTextLimit
	}
	if o.RowLimit <= 0 {
		o.RowLimit = DefaultRowLimit
	}
	return o
}

// ToText renders the file as text. CSV and Excel files (.xlsx and legacy .xls) become an
// aligned table of the header plus the first RowLimit rows; anything else is read as
// UTF-8 text.
func ToText(filename string, content []byte, opts Options) (string, error) {
	opts = opts.withDefaults()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err := readCSV(content, opts.RowLimit+1)
		if err != nil {
			return "", fmt.Errorf("ToText: %s: %w: %v", filename, ErrInvalidFile, err)
		}
		return renderTable(rows), nil
	case ".xlsx", ".xlsm":
		rows, err := readExcel(content, opts.RowLimit+1)
		if err != nil {
			return "", fmt.Errorf("ToText: %s: %w: %v", filename, ErrInvalidFile, err)
		}
		return renderTable(rows), nil
	case ".pdf", ".doc", ".docx", ".zip", ".png", ".jpg", ".jpeg":
		return "", fmt.Errorf("ToText: %s: %w", filename, ErrUnsupportedFile)
	case ".xls":
		rows, err := readLegacyExcel(content, opts.RowLimit+1)
		if err != nil {
			return "", fmt.Errorf("ToText: %s: %w: %v", filename, ErrInvalidFile, err)
		}
		return renderTable(rows), nil
	default:
		return TruncateUTF8(string(content), opts.TextLimit), nil
	}
}

func readCSV(content []byte, maxRows int) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for len(rows) < maxRows {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows")
	}
	return rows, nil
}

func readExcel(content []byte, maxRows int) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	kept := keepRows(len(rows), func(i int) []string { return rows[i] }, maxRows)
	if len(kept) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return kept, nil
}

// readLegacyExcel reads the first sheet of a BIFF (.xls) workbook.
func readLegacyExcel(content []byte, maxRows int) (rows [][]string, err error) {
	// The BIFF parser panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no readable sheet")
	}

	kept := keepRows(int(sheet.MaxRow)+1, func(i int) []string {
		row := sheet.Row(i)
		if row == nil {
			return nil
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		return cells
	}, maxRows)
	if len(kept) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet.Name)
	}
	return kept, nil
}

// keepRows collects up to maxRows non-blank rows out of n.
func keepRows(n int, row func(i int) []string, maxRows int) [][]string {
	var kept [][]string
	for i := 0; i < n && len(kept) < maxRows; i++ {
		r := row(i)
		if isBlank(r) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func renderTable(rows [][]string) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.Join(strings.Fields(c), " ")
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return buf.String()
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// TruncateUTF8 cuts s to at most n bytes without splitting a rune. Invalid sequences
// are replaced.
func TruncateUTF8(s string, n int) string {
	s = strings.ToValidUTF8(s, "�")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
