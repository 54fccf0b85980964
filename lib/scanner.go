package sqlrunner

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// StringScanner scans any driver value into its text form and remembers
// whether it was NULL or numeric.
type StringScanner struct {
	// NumericColumn marks the scanned column as numeric by declaration, so
	// textual values (DECIMAL, NUMERIC) still count as numbers.
	NumericColumn bool

	value   string
	null    bool
	numeric bool
}

func (s *StringScanner) Scan(value any) error {
	s.null = false
	s.numeric = false

	switch v := value.(type) {
	case int64:
		s.value = strconv.FormatInt(v, 10)
		s.numeric = true
	case float64:
		s.value = strconv.FormatFloat(v, 'f', -1, 64)
		s.numeric = true
	case bool:
		s.value = strconv.FormatBool(v)
	case []byte:
		if utf8.Valid(v) {
			s.value = string(v)
		} else {
			s.value = hex.EncodeToString(v)
		}
		s.numeric = s.NumericColumn && isNumber(s.value)
	case string:
		s.value = v
		s.numeric = s.NumericColumn && isNumber(v)
	case time.Time:
		s.value = v.Format("2006-01-02 15:04:05")
	case nil:
		s.value = ""
		s.null = true
	default:
		s.value = fmt.Sprintf("%v", value)
	}

	return nil
}

func (s *StringScanner) Value() string {
	return s.value
}

// Cell returns the scanned value as a result cell.
func (s *StringScanner) Cell() Cell {
	return Cell{Value: s.value, Null: s.null, Numeric: s.numeric}
}

func isNumber(v string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil
}

var numericTypeMarkers = []string{"INT", "NUMERIC", "DECIMAL", "FLOAT", "DOUBLE", "REAL", "MONEY"}

// isNumericType reports whether a DatabaseTypeName describes a number.
func isNumericType(name string) bool {
	name = strings.ToUpper(name)
	for _, marker := range numericTypeMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

var _ sql.Scanner = &StringScanner{}
