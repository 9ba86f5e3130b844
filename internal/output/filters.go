// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
)

// filterRegex splits a filter expression into key, operator and target.
// Operators are one of = ^ ~ < > @ or /, optionally prefixed with '!'.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is a single parsed --filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses a filter specification string into a slice of Filter.
// Malformed entries are logged and skipped.
func BuildFilters(spec string) []Filter {
	//nolint:prealloc
	var filters []Filter

	if spec == "" {
		return filters
	}

	// Default delimiter is ",", allow an override.
	delim := ","
	if d, ok := os.LookupEnv("BOMPRICE_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	for _, filterSpec := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(filterSpec)
		if parts == nil {
			log.Error("invalid filter: " + filterSpec)
			continue
		}

		negate := strings.HasPrefix(parts[2], "!")
		if negate {
			parts[2] = strings.TrimPrefix(parts[2], "!")
		}

		filters = append(filters, Filter{
			Key:     strings.TrimSpace(parts[1]),
			Negate:  negate,
			Operand: parts[2],
			Target:  parts[3],
		})
	}

	return filters
}

// FilterDataset returns the records matching every filter in spec. Filters on
// keys that are not columns are reported and ignored.
func FilterDataset(records []map[string]interface{}, cols Columns, spec string) []map[string]interface{} {
	filters := BuildFilters(spec)
	if len(filters) == 0 {
		return records
	}

	var usable []Filter
	for _, f := range filters {
		if !cols.has(f.Key) {
			msg := fmt.Sprintf("filter key not found: %s", f.Key)
			log.Error(msg)
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
			continue
		}
		usable = append(usable, f)
	}

	//nolint:prealloc
	var filtered []map[string]interface{}
	for _, record := range records {
		if applyFilters(record, usable) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// applyFilters returns true if the record matches all of the filters.
func applyFilters(record map[string]interface{}, filters []Filter) bool {
	for _, filter := range filters {
		value := record[filter.Key]
		if value == nil {
			// A missing value only satisfies a negated filter.
			if !filter.Negate {
				return false
			}
			continue
		}

		var result bool
		if num, ok := toDecimal(value); ok && isNumericOperand(filter.Operand) {
			result = checkNumericOperand(num, filter)
		} else {
			result = checkStringOperand(InterfaceToString(value), filter)
		}

		if !result {
			return false
		}
	}

	return true
}

func isNumericOperand(op string) bool {
	return op == "=" || op == "<" || op == ">"
}

// checkNumericOperand compares value against the filter target numerically.
// A target that is not a number falls back to a string comparison.
func checkNumericOperand(value decimal.Decimal, filter Filter) bool {
	tgt, err := decimal.NewFromString(strings.TrimSpace(filter.Target))
	if err != nil {
		return checkStringOperand(value.String(), filter)
	}

	switch filter.Operand {
	case "=":
		return value.Equal(tgt) == !filter.Negate
	case ">":
		return value.GreaterThan(tgt) == !filter.Negate
	case "<":
		return value.LessThan(tgt) == !filter.Negate
	default:
		log.Error("unsupported numeric operand: " + filter.Operand)
		return false
	}
}

// checkStringOperand evaluates a string comparison against value.
func checkStringOperand(value string, filter Filter) bool {
	switch filter.Operand {
	case "=":
		return value == filter.Target == !filter.Negate
	case "~":
		return strings.EqualFold(value, filter.Target) == !filter.Negate
	case "^":
		return strings.HasPrefix(value, filter.Target) == !filter.Negate
	case ">":
		return value > filter.Target == !filter.Negate
	case "<":
		return value < filter.Target == !filter.Negate
	case "@":
		return strings.Contains(value, filter.Target) == !filter.Negate
	case "/":
		matched, err := regexp.MatchString(filter.Target, value)
		if err != nil {
			log.Error("invalid regex: " + filter.Target)
			return false
		}
		return matched == !filter.Negate
	default:
		log.Error("unsupported filtering operand: " + filter.Operand)
		return false
	}
}

// toDecimal normalizes numeric values, including numeric strings, to a
// decimal.
func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
