// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/shopspring/decimal"

	"github.com/staranto/bomprice/internal/netlist"
	"github.com/staranto/bomprice/internal/partcache"
)

// Columns is the BOM table header.
var Columns = []string{
	"Item", "LCSC Part #", "Qty", "Reference(s)", "Value", "LibPart", "Footprint",
	"LCSC Footprint", "Price per unit", "Price total", "in stock",
}

// Resolver prices a single part number.
type Resolver interface {
	Resolve(ctx context.Context, partNumber string) (partcache.Quote, error)
}

// Options tunes Generate.
type Options struct {
	// Generator is reported in the header block.
	Generator   string
	Exclusions  netlist.Exclusions
	Equivalence netlist.Equivalence
}

// Summary is what Generate learned about the BOM as a whole.
type Summary struct {
	Total        decimal.Decimal
	Lines        int
	WithoutPrice []string
}

// OutputPath appends ".csv" unless name already ends with it.
func OutputPath(name string) string {
	if strings.HasSuffix(name, ".csv") {
		return name
	}
	return name + ".csv"
}

// Generate writes the grouped and priced BOM for n as CSV to w. Parts are
// priced in group order through res. Only a resolver error stops the report.
func Generate(ctx context.Context, w io.Writer, n *netlist.Netlist, res Resolver, opts Options) (Summary, error) {
	components := n.Interesting(opts.Exclusions)
	groups := netlist.GroupComponents(components, opts.Equivalence)

	out := newQuotedWriter(w)
	header := [][]string{
		{"Source:", n.Source},
		{"Date:", n.Date},
		{"Tool:", n.Tool},
		{"Generator:", opts.Generator},
		{"Component Count:", strconv.Itoa(len(components))},
		{"Unique component Count:", strconv.Itoa(len(groups))},
		{},
		Columns,
	}
	if err := out.WriteAll(header); err != nil {
		return Summary{}, fmt.Errorf("failed to write bom header: %w", err)
	}

	sum := Summary{Total: decimal.Zero}
	for i, g := range groups {
		row, err := line(ctx, i, g, res, &sum)
		if err != nil {
			return sum, err
		}
		if err := out.Write(row); err != nil {
			return sum, fmt.Errorf("failed to write bom line: %w", err)
		}
		sum.Lines++
	}

	if err := out.Flush(); err != nil {
		return sum, fmt.Errorf("failed to write bom: %w", err)
	}
	return sum, nil
}

func line(ctx context.Context, index int, g netlist.Group, res Resolver, sum *Summary) ([]string, error) {
	first := g.First()
	pn := first.PartNumber()

	var price, total, stock, lcscFootprint string
	if pn != "" {
		q, err := res.Resolve(ctx, pn)
		if err != nil {
			return nil, err
		}
		if q.Price != nil {
			t := q.Price.Mul(decimal.NewFromInt(int64(len(g))))
			sum.Total = sum.Total.Add(t)
			price, total = q.Price.String(), t.String()
		} else {
			total = "Error"
			sum.WithoutPrice = append(sum.WithoutPrice, first.Part)
		}
		if q.InStock != nil {
			stock = strconv.FormatInt(*q.InStock, 10)
		}
		if q.Footprint != nil {
			lcscFootprint = *q.Footprint
		}
	} else {
		sum.WithoutPrice = append(sum.WithoutPrice, first.Part)
	}

	log.Debugf("bom line %d: %s x%d price=%s", index, pn, len(g), price)

	return []string{
		strconv.Itoa(index),
		pn,
		strconv.Itoa(len(g)),
		strings.Join(g.Refs(), ", "),
		first.Value,
		first.LibPart(),
		g.Footprint(),
		lcscFootprint,
		price,
		total,
		stock,
	}, nil
}

// WriteFile generates the BOM into path, appending ".csv" when missing, and
// returns the summary and the path written.
func WriteFile(ctx context.Context, path string, n *netlist.Netlist, res Resolver, opts Options) (Summary, string, error) {
	path = OutputPath(path)

	f, err := os.Create(path)
	if err != nil {
		return Summary{}, path, err
	}

	sum, err := Generate(ctx, f, n, res, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return sum, path, err
}

// Report prints the summary the way the BOM command shows it.
func (s Summary) Report(w io.Writer) {
	fmt.Fprintf(w, "Total price: %s\n", s.Total.String())
	fmt.Fprintf(w, "Num items without price: %d\n", len(s.WithoutPrice))
	for _, item := range s.WithoutPrice {
		fmt.Fprintf(w, "   %s\n", item)
	}
}
