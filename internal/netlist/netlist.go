// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package netlist

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// PartField is the component field holding the LCSC part number.
const PartField = "LCSC Part #"

var ErrParse = errors.New("failed to parse netlist")

// Netlist is the subset of a KiCad generic netlist needed for a BOM.
type Netlist struct {
	Source     string
	Date       string
	Tool       string
	Components []*Component
}

// Component is one placed symbol.
type Component struct {
	Ref       string
	Value     string
	Footprint string
	Datasheet string
	Lib       string
	Part      string
	Fields    map[string]string
}

// Field returns the named user field, or "".
func (c *Component) Field(name string) string {
	return c.Fields[name]
}

// LibPart is the "lib:part" symbol identity.
func (c *Component) LibPart() string {
	return c.Lib + ":" + c.Part
}

// PartNumber is the component's LCSC part number, trimmed.
func (c *Component) PartNumber() string {
	return strings.TrimSpace(c.Field(PartField))
}

type xmlNetlist struct {
	XMLName xml.Name `xml:"export"`
	Design  struct {
		Source string `xml:"source"`
		Date   string `xml:"date"`
		Tool   string `xml:"tool"`
	} `xml:"design"`
	Components []xmlComp `xml:"components>comp"`
}

type xmlComp struct {
	Ref       string `xml:"ref,attr"`
	Value     string `xml:"value"`
	Footprint string `xml:"footprint"`
	Datasheet string `xml:"datasheet"`
	Libsource struct {
		Lib  string `xml:"lib,attr"`
		Part string `xml:"part,attr"`
	} `xml:"libsource"`
	Fields []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:",chardata"`
	} `xml:"fields>field"`
	Properties []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"property"`
}

// Load reads and parses the netlist at path.
func Load(path string) (*Netlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a KiCad generic netlist. KiCad 5 <fields> and KiCad 6+
// <property> entries both populate Component.Fields; fields win on conflict.
func Parse(r io.Reader) (*Netlist, error) {
	var x xmlNetlist
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	n := &Netlist{
		Source: strings.TrimSpace(x.Design.Source),
		Date:   strings.TrimSpace(x.Design.Date),
		Tool:   strings.TrimSpace(x.Design.Tool),
	}

	for _, xc := range x.Components {
		c := &Component{
			Ref:       xc.Ref,
			Value:     strings.TrimSpace(xc.Value),
			Footprint: strings.TrimSpace(xc.Footprint),
			Datasheet: strings.TrimSpace(xc.Datasheet),
			Lib:       xc.Libsource.Lib,
			Part:      xc.Libsource.Part,
			Fields:    map[string]string{},
		}
		for _, p := range xc.Properties {
			c.Fields[p.Name] = p.Value
		}
		for _, f := range xc.Fields {
			c.Fields[f.Name] = strings.TrimSpace(f.Value)
		}
		n.Components = append(n.Components, c)
	}

	log.Debugf("parsed netlist %s: %d components", n.Source, len(n.Components))
	return n, nil
}

// Exclusions names components left out of a BOM. Each entry is a regular
// expression anchored at both ends.
type Exclusions struct {
	Refs       []string
	Values     []string
	Footprints []string
}

// DefaultExclusions drops test points, mounting holes and solder bridges.
var DefaultExclusions = Exclusions{
	Refs:       []string{`TP[0-9]+`},
	Values:     []string{`MOUNTHOLE`, `SCOPETEST`, `MOUNT_HOLE`, `SOLDER_BRIDGE.*`},
	Footprints: []string{`TestPoint.*`},
}

func anyMatch(patterns []string, s string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			log.Warnf("invalid exclusion pattern %q: %s", p, err)
			continue
		}
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// excludedByFlag reports a component marked out of the BOM by the schematic.
func excludedByFlag(c *Component) bool {
	for _, k := range []string{"exclude_from_bom", "dnp"} {
		if _, ok := c.Fields[k]; ok {
			return true
		}
	}
	return false
}

// Interesting returns the components wanted in a BOM, sorted by reference.
// Components with a duplicate reference (multi-unit symbols) appear once.
func (n *Netlist) Interesting(ex Exclusions) []*Component {
	seen := map[string]bool{}

	var out []*Component
	for _, c := range n.Components {
		if seen[c.Ref] {
			continue
		}
		switch {
		case excludedByFlag(c),
			anyMatch(ex.Refs, c.Ref),
			anyMatch(ex.Values, c.Value),
			anyMatch(ex.Footprints, footprintName(c.Footprint)):
			log.Debugf("excluding %s", c.Ref)
			continue
		}
		seen[c.Ref] = true
		out = append(out, c)
	}

	SortByRef(out)
	return out
}

// footprintName drops the library prefix from "lib:footprint".
func footprintName(fp string) string {
	if i := strings.LastIndex(fp, ":"); i >= 0 {
		return fp[i+1:]
	}
	return fp
}

var refRe = regexp.MustCompile(`^(.*?)(\d*)$`)

// SortByRef orders components naturally, so R2 precedes R10.
func SortByRef(comps []*Component) {
	sort.SliceStable(comps, func(i, j int) bool {
		return refLess(comps[i].Ref, comps[j].Ref)
	})
}

func refLess(a, b string) bool {
	ma, mb := refRe.FindStringSubmatch(a), refRe.FindStringSubmatch(b)
	if ma[1] != mb[1] {
		return ma[1] < mb[1]
	}
	na, errA := strconv.Atoi(ma[2])
	nb, errB := strconv.Atoi(mb[2])
	if errA != nil || errB != nil {
		return ma[2] < mb[2]
	}
	return na < nb
}
