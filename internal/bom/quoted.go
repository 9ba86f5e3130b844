// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"bufio"
	"io"
	"strings"
)

// quotedWriter writes CSV with every field quoted and "\n" line endings, the
// layout KiCad BOM plugins produce. encoding/csv only quotes when it must.
type quotedWriter struct {
	w *bufio.Writer
}

func newQuotedWriter(w io.Writer) *quotedWriter {
	return &quotedWriter{w: bufio.NewWriter(w)}
}

// Write writes one record. An empty record is a blank line.
func (q *quotedWriter) Write(record []string) error {
	for i, field := range record {
		if i > 0 {
			if err := q.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := q.w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return q.w.WriteByte('\n')
}

func (q *quotedWriter) WriteAll(records [][]string) error {
	for _, r := range records {
		if err := q.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func (q *quotedWriter) Flush() error {
	return q.w.Flush()
}
