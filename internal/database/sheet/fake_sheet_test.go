package sheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// fakeSheet is an in-memory stand-in for the values API of a single
// spreadsheet. It mimics the behaviors the repository depends on:
// ranges address a rectangular window, reads trim trailing empty rows
// and cells, appends land after the last populated row, and clears
// blank cells without removing rows.
type fakeSheet struct {
	mu sync.Mutex
	// grid is 0-indexed; grid[0] is spreadsheet row 1 (the header).
	grid [][]string

	getCalls    int
	appendCalls int
	updateCalls int
	clearCalls  int

	failNext error
}

const fakeSheetCols = 6

func newFakeSheet() *fakeSheet {
	return &fakeSheet{
		grid: [][]string{{"id", "url", "shortCode", "createdAt", "updatedAt", "count"}},
	}
}

type cellRange struct {
	startCol, endCol int // 0-based, inclusive
	startRow, endRow int // 1-based, inclusive; endRow 0 means open-ended
}

// parseRange understands the range shapes the repository emits:
// Sheet1!C2:C, Sheet1!A2:F, Sheet1!A:F, Sheet1!B3, Sheet1!E3:F3.
func parseRange(rng string) (cellRange, error) {
	_, ref, ok := strings.Cut(rng, "!")
	if !ok {
		return cellRange{}, fmt.Errorf("range %q missing sheet name", rng)
	}

	parseCell := func(s string) (col, row int, err error) {
		if s == "" || s[0] < 'A' || s[0] > 'Z' {
			return 0, 0, fmt.Errorf("bad cell ref %q", s)
		}
		col = int(s[0] - 'A')
		if len(s) > 1 {
			row, err = strconv.Atoi(s[1:])
			if err != nil {
				return 0, 0, fmt.Errorf("bad cell ref %q", s)
			}
		}
		return col, row, nil
	}

	start, end, hasEnd := strings.Cut(ref, ":")
	startCol, startRow, err := parseCell(start)
	if err != nil {
		return cellRange{}, err
	}
	if startRow == 0 {
		startRow = 1
	}

	cr := cellRange{startCol: startCol, endCol: startCol, startRow: startRow, endRow: startRow}
	if !hasEnd {
		return cr, nil
	}

	endCol, endRow, err := parseCell(end)
	if err != nil {
		return cellRange{}, err
	}
	cr.endCol = endCol
	cr.endRow = endRow

	return cr, nil
}

func (f *fakeSheet) GetValues(ctx context.Context, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	if err := f.takeFailure(); err != nil {
		return nil, err
	}

	cr, err := parseRange(rng)
	if err != nil {
		return nil, err
	}

	endRow := cr.endRow
	if endRow == 0 || endRow > len(f.grid) {
		endRow = len(f.grid)
	}

	var out [][]string
	for rowNum := cr.startRow; rowNum <= endRow; rowNum++ {
		row := f.grid[rowNum-1]
		window := make([]string, 0, cr.endCol-cr.startCol+1)
		for col := cr.startCol; col <= cr.endCol && col < len(row); col++ {
			window = append(window, row[col])
		}
		// the API omits trailing empty cells
		for len(window) > 0 && window[len(window)-1] == "" {
			window = window[:len(window)-1]
		}
		out = append(out, window)
	}
	// and trailing empty rows
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}

	return out, nil
}

func (f *fakeSheet) AppendValues(ctx context.Context, rng string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++

	if err := f.takeFailure(); err != nil {
		return err
	}

	for _, row := range rows {
		padded := make([]string, fakeSheetCols)
		copy(padded, row)
		f.grid = append(f.grid, padded)
	}

	return nil
}

func (f *fakeSheet) UpdateValues(ctx context.Context, rng string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++

	if err := f.takeFailure(); err != nil {
		return err
	}

	cr, err := parseRange(rng)
	if err != nil {
		return err
	}

	for i, row := range rows {
		rowNum := cr.startRow + i
		for len(f.grid) < rowNum {
			f.grid = append(f.grid, make([]string, fakeSheetCols))
		}
		for j, cell := range row {
			f.grid[rowNum-1][cr.startCol+j] = cell
		}
	}

	return nil
}

func (f *fakeSheet) ClearValues(ctx context.Context, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++

	if err := f.takeFailure(); err != nil {
		return err
	}

	cr, err := parseRange(rng)
	if err != nil {
		return err
	}

	endRow := cr.endRow
	if endRow == 0 || endRow > len(f.grid) {
		endRow = len(f.grid)
	}

	for rowNum := cr.startRow; rowNum <= endRow; rowNum++ {
		row := f.grid[rowNum-1]
		for col := cr.startCol; col <= cr.endCol && col < len(row); col++ {
			row[col] = ""
		}
	}

	return nil
}

// failOnce arranges for the next call to fail with err.
func (f *fakeSheet) failOnce(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

func (f *fakeSheet) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

// row returns a copy of the 1-based spreadsheet row.
func (f *fakeSheet) row(rowNum int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.grid[rowNum-1]))
	copy(out, f.grid[rowNum-1])
	return out
}

func (f *fakeSheet) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grid)
}
