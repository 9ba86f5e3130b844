// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"strings"

	"github.com/apex/log"
)

// Column is one key of a record to be shown in the output.
type Column struct {
	// The record key.
	Key string
	// Should this Column be included in output or is it just
	// intended for filtering and sorting?
	Include bool
	// Column title when output=text.
	Title string
}

type Columns []Column

// NewColumns builds an all-included Columns from keys.
func NewColumns(keys ...string) Columns {
	cols := make(Columns, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, Column{Key: k, Include: true, Title: k})
	}
	return cols
}

// String returns the list in --columns form.
func (c Columns) String() string {
	result := make([]string, 0, len(c))
	for _, col := range c {
		key := col.Key
		if !col.Include {
			key = "!" + key
		}
		if col.Title != col.Key {
			key = fmt.Sprintf("%s:%s", key, col.Title)
		}
		result = append(result, key)
	}
	return strings.Join(result, ",")
}

// Apply merges a --columns spec into c. Each comma delimited entry is
// key[:title]. A leading ! hides the key. Known keys are updated in place,
// unknown keys are appended, and "*" is a no-op so a spec can be anchored to
// the defaults.
func (c Columns) Apply(spec string) Columns {
	if spec == "" || spec == "*" {
		return c
	}

	out := make(Columns, len(c))
	copy(out, c)

specloop:
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" || entry == "*" {
			continue
		}

		col := Column{Include: true}
		key, title, hasTitle := strings.Cut(entry, ":")
		if strings.HasPrefix(key, "!") {
			col.Include = false
			key = key[1:]
		}
		col.Key = strings.TrimSpace(key)
		col.Title = col.Key
		if hasTitle && strings.TrimSpace(title) != "" {
			col.Title = strings.TrimSpace(title)
		}

		for i := range out {
			if out[i].Key == col.Key {
				out[i].Include = col.Include
				if hasTitle {
					out[i].Title = col.Title
				}
				continue specloop
			}
		}

		log.Debugf("adding column: %s", col.Key)
		out = append(out, col)
	}

	return out
}

// Included returns the columns that are shown.
func (c Columns) Included() Columns {
	var inc Columns
	for _, col := range c {
		if col.Include {
			inc = append(inc, col)
		}
	}
	return inc
}

// has reports whether key names a column.
func (c Columns) has(key string) bool {
	for _, col := range c {
		if col.Key == key {
			return true
		}
	}
	return false
}
