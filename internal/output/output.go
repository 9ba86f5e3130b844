// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/staranto/bomprice/internal/config"
)

// Formats accepted by --output.
var Formats = []string{"text", "json", "yaml"}

var ErrUnknownFormat = errors.New("unknown output format")

// Options controls how Spit renders a dataset.
type Options struct {
	Format string
	Titles bool
	Color  bool
	Filter string
	Sort   string
}

// Spit filters, sorts and renders records to w. A nil w means stdout.
func Spit(w io.Writer, records []map[string]interface{}, cols Columns, opts Options) error {
	if w == nil {
		w = os.Stdout
	}

	filtered := FilterDataset(records, cols, opts.Filter)
	SortDataset(filtered, opts.Sort)
	log.Debugf("spit: %d of %d records, format=%s", len(filtered), len(records), opts.Format)

	switch opts.Format {
	case "json":
		out, err := json.Marshal(project(filtered, cols))
		if err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(project(filtered, cols))
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "", "text":
		TableWriter(w, filtered, cols, opts)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, opts.Format)
	}
}

// project keeps only the included columns of each record. Values are
// stringified so decimals keep their exact form in json and yaml.
func project(records []map[string]interface{}, cols Columns) []map[string]interface{} {
	inc := cols.Included()
	out := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		row := make(map[string]interface{}, len(inc))
		for _, col := range inc {
			v := r[col.Key]
			switch tv := v.(type) {
			case decimal.Decimal, *decimal.Decimal, time.Time:
				row[col.Key] = InterfaceToString(tv)
			default:
				row[col.Key] = v
			}
		}
		out = append(out, row)
	}
	return out
}

// TableWriter renders the records as a borderless table honoring color,
// titles and padding options.
func TableWriter(w io.Writer, records []map[string]interface{}, cols Columns, opts Options) {
	if len(records) == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	inc := cols.Included()

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, 0, len(inc))
		for _, col := range inc {
			row = append(row, InterfaceToString(record[col.Key], "-"))
		}
		rows = append(rows, row)
	}

	pad, _ := config.GetInt("padding", 0)

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(pad)
			}

			return style
		}).
		Headers().
		Rows(rows...)

	if opts.Titles {
		headers := make([]string, 0, len(inc))
		for _, col := range inc {
			headers = append(headers, col.Title)
		}

		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}
	fmt.Fprintln(w, t)
}

// DumpExamples renders a table of example command usages.
func DumpExamples(w io.Writer, examples [][2]string) {
	if len(examples) == 0 {
		return
	}
	if w == nil {
		w = os.Stdout
	}

	rows := make([][]string, 0, len(examples))
	for _, ex := range examples {
		rows = append(rows, []string{ex[0], ex[1]})
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		Headers("Command", "Description").
		BorderHeader(false).
		Rows(rows...)

	fmt.Fprintln(w, t)
}

// getColors returns configured color values for table rendering.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(fmt.Sprintf("%s.title", key), "#f6be00")
	even, _ = config.GetString(fmt.Sprintf("%s.even", key), "#ffffff")
	odd, _ = config.GetString(fmt.Sprintf("%s.odd", key), "#00c8f0")
	return
}

// InterfaceToString converts supported primitive or composite values to a
// string. A custom empty value may be provided for nil and "".
func InterfaceToString(value interface{}, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	switch value := value.(type) {
	case nil:
		return emptyValue[0]
	case string:
		if value == "" {
			return emptyValue[0]
		}
		return value
	case *string:
		if value == nil || *value == "" {
			return emptyValue[0]
		}
		return *value
	case decimal.Decimal:
		return value.String()
	case *decimal.Decimal:
		if value == nil {
			return emptyValue[0]
		}
		return value.String()
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case *int64:
		if value == nil {
			return emptyValue[0]
		}
		return strconv.FormatInt(*value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}
