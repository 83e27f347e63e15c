package io

import (
	"encoding/csv"
	"fmt"
	gio "io"
	"os"
	"strconv"
	"strings"
	"time"
)

type void struct{}

var Void = void{}

type Set map[string]void

func NewSet(values ...string) Set {
	set := Set{}
	for _, val := range values {
		set[val] = Void
	}
	return set
}

// LoadParameters control how a CSV file is read into a frame.
type LoadParameters struct {
	DataFile string

	// TargetColumn, when non-empty, is split out of the frame and returned
	// as a separate column.
	TargetColumn string

	// CategoricalColumns forces the listed columns to the category type
	// regardless of what their values would infer to.
	CategoricalColumns Set

	// DatetimeColumns forces the listed columns to be parsed as datetimes.
	DatetimeColumns Set
}

// DataError reports a recoverable problem with a single input line.
type DataError struct {
	Line  int
	Error string
}

var datetimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// LoadCSV reads a headered CSV file into a typed frame. Column types are
// taken from the declared categorical/datetime sets and otherwise inferred
// from the values; cells holding an empty string, NA, N/A, NaN or ? are
// treated as missing. Malformed lines are skipped and reported as data
// errors rather than failing the whole load.
func LoadCSV(p LoadParameters) (*Frame, *Column, []DataError, error) {
	inputFile, err := os.Open(p.DataFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error opening file: %w", err)
	}
	defer inputFile.Close()

	reader := csv.NewReader(inputFile)
	reader.Comma = ','

	// First line is expected to be a header
	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error reading data header: %w", err)
	}

	var dataErrors []DataError
	cells := make([][]string, len(header))
	currentLine := 0
	for {
		record, err := reader.Read()
		if err == gio.EOF {
			break
		}
		if err != nil {
			dataErrors = append(dataErrors, DataError{Line: currentLine, Error: err.Error()})
			currentLine++
			if record == nil {
				break
			}
			continue
		}
		for i := range header {
			cells[i] = append(cells[i], record[i])
		}
		currentLine++
	}

	frame, err := NewFrame()
	if err != nil {
		return nil, nil, nil, err
	}
	var target *Column
	for i, name := range header {
		col := buildColumn(name, cells[i], columnTypeFor(name, cells[i], p))
		if name == p.TargetColumn {
			target = col
			continue
		}
		if err := frame.add(col); err != nil {
			return nil, nil, nil, err
		}
	}
	if p.TargetColumn != "" && target == nil {
		return nil, nil, nil, fmt.Errorf("target column %s not found in data header", p.TargetColumn)
	}
	return frame, target, dataErrors, nil
}

func columnTypeFor(name string, values []string, p LoadParameters) ColumnType {
	if _, ok := p.CategoricalColumns[name]; ok {
		return Category
	}
	if _, ok := p.DatetimeColumns[name]; ok {
		return Datetime
	}
	return inferColumnType(values)
}

func inferColumnType(values []string) ColumnType {
	isInt, isFloat, isBool, isDatetime := true, true, true, true
	present := 0
	for _, v := range values {
		if isMissingToken(v) {
			continue
		}
		present++
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isFloat = false
		}
		if !isBoolToken(v) {
			isBool = false
		}
		if _, err := parseDatetime(v); err != nil {
			isDatetime = false
		}
	}
	if present == 0 {
		return Object
	}
	switch {
	case isBool:
		return Bool
	case isInt:
		return Int
	case isFloat:
		return Float
	case isDatetime:
		return Datetime
	}
	return Object
}

func buildColumn(name string, values []string, t ColumnType) *Column {
	missing := make([]bool, len(values))
	for i, v := range values {
		missing[i] = isMissingToken(v)
	}
	if t.Continuous() {
		floats := make([]float64, len(values))
		for i, v := range values {
			if missing[i] {
				continue
			}
			parsed, err := parseContinuous(v, t)
			if err != nil {
				missing[i] = true
				continue
			}
			floats[i] = parsed
		}
		return NewFloatColumn(name, t, floats, missing)
	}
	strs := make([]string, len(values))
	for i, v := range values {
		if missing[i] {
			continue
		}
		if t == Bool {
			strs[i] = strings.ToLower(v)
			continue
		}
		strs[i] = v
	}
	return NewStringColumn(name, t, strs, missing)
}

func parseContinuous(value string, t ColumnType) (float64, error) {
	if t == Datetime {
		ts, err := parseDatetime(value)
		if err != nil {
			return 0, err
		}
		return float64(ts.Unix()), nil
	}
	return strconv.ParseFloat(value, 64)
}

func parseDatetime(value string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime value %q", value)
}

func isMissingToken(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "NA", "N/A", "NaN", "nan", "?":
		return true
	}
	return false
}

func isBoolToken(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false":
		return true
	}
	return false
}
