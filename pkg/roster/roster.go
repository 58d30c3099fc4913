// Package roster imports student records from spreadsheets.
package roster

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/pkg/document"
	"github.com/xuri/excelize/v2"
)

// Columns lists the header cells a roster sheet must contain.
var Columns = []string{"name", "student_class", "dob", "gender", "city", "marks"}

type StudentWriter interface {
	Add(ctx context.Context, s models.Student) error
}

// Parse reads the first sheet of an .xlsx workbook. The first row is the
// header; column order is free. Blank rows are skipped.
func Parse(filename string, data []byte) ([]models.Student, error) {
	if _, err := document.Detect(filename, data, document.XLSX); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	index := make(map[string]int, len(rows[0]))
	for i, cell := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var students []models.Student
	for n, row := range rows[1:] {
		cell := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if strings.Join(row, "") == "" {
			continue
		}

		var marks float64
		if raw := cell("marks"); raw != "" {
			marks, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid marks %q", n+2, raw)
			}
		}

		students = append(students, models.Student{
			Name:         cell("name"),
			StudentClass: cell("student_class"),
			DOB:          cell("dob"),
			Gender:       cell("gender"),
			City:         cell("city"),
			Marks:        marks,
		})
	}

	return students, nil
}

// Import parses the workbook and adds every student to w. It returns the
// number of records written before any failure.
func Import(ctx context.Context, w StudentWriter, filename string, data []byte) (int, error) {
	students, err := Parse(filename, data)
	if err != nil {
		return 0, err
	}

	for i, s := range students {
		if err := w.Add(ctx, s); err != nil {
			return i, fmt.Errorf("failed to add student %q: %w", s.Name, err)
		}
	}

	log.Info().Str("file", filename).Int("students", len(students)).Msg("imported roster")
	return len(students), nil
}
