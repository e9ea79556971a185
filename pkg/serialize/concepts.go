package serialize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/graph"
)

// Concept column headers.
const (
	colClass    = "Data class"
	colDatatype = "Data type"
	colAnswers  = "Answers"
	colMembers  = "Members"
	colSameAs   = "Same as mappings"

	mappingsPrefix = "Mappings|"
	sameAsType     = "SAME-AS"
	listSeparator  = ";"
)

// numericColumns pairs the numeric headers with their values.
var numericColumns = []struct {
	header string
	value  func(*graph.Numeric) string
}{
	{"Absolute low", func(n *graph.Numeric) string { return n.LowAbsolute }},
	{"Critical low", func(n *graph.Numeric) string { return n.LowCritical }},
	{"Normal low", func(n *graph.Numeric) string { return n.LowNormal }},
	{"Normal high", func(n *graph.Numeric) string { return n.HiNormal }},
	{"Critical high", func(n *graph.Numeric) string { return n.HiCritical }},
	{"Absolute high", func(n *graph.Numeric) string { return n.HiAbsolute }},
	{"Units", func(n *graph.Numeric) string { return n.Units }},
	{"Allow decimals", func(n *graph.Numeric) string { return n.AllowDecimal }},
	{"Display precision", func(n *graph.Numeric) string { return n.DisplayPrecision }},
}

// columns accumulates a dynamic header. Cells are addressed by header name
// so rows can be filled before the final column order is known.
type columns struct {
	index map[string]int
	names []string
}

func (c *columns) add(name string) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if _, ok := c.index[name]; ok {
		return
	}
	c.index[name] = len(c.names)
	c.names = append(c.names, name)
}

// layout collects the localized and mapping columns a graph needs.
type layout struct {
	fsn, short, description map[string]bool
	synonyms                map[string]int
	mapTypes                map[string]bool
	sameAs, numeric         bool
}

func scan(concepts []*graph.Concept) *layout {
	l := &layout{
		fsn:         make(map[string]bool),
		short:       make(map[string]bool),
		description: make(map[string]bool),
		synonyms:    make(map[string]int),
		mapTypes:    make(map[string]bool),
	}
	for _, c := range concepts {
		for _, locale := range c.Locales() {
			if c.FullySpecifiedName(locale) != nil {
				l.fsn[locale] = true
			}
			if c.ShortName(locale) != nil {
				l.short[locale] = true
			}
			if c.Description(locale) != nil {
				l.description[locale] = true
			}
			if n := len(c.Synonyms(locale)); n > l.synonyms[locale] {
				l.synonyms[locale] = n
			}
		}
		for _, m := range c.Mappings {
			if t := mapType(m); t == "" {
				l.sameAs = true
			} else {
				l.mapTypes[t] = true
			}
		}
		if c.Numeric != nil {
			l.numeric = true
		}
	}
	return l
}

// mapType returns the header type of a map, empty for same-as maps.
func mapType(m *graph.ConceptMap) string {
	t := m.MapType.Target()
	if t == nil || strings.EqualFold(t.Name, sameAsType) {
		return ""
	}
	return t.Name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fsnHeader(locale string) string   { return "Fully specified name:" + locale }
func shortHeader(locale string) string { return "Short name:" + locale }
func descHeader(locale string) string  { return "Description:" + locale }

func synonymHeader(i int, locale string) string {
	return fmt.Sprintf("Synonym %d:%s", i, locale)
}

func (l *layout) header() *columns {
	var cols columns
	cols.add(colUUID)
	cols.add(colRetire)
	for _, locale := range sortedKeys(l.fsn) {
		cols.add(fsnHeader(locale))
	}
	for _, locale := range sortedKeys(l.short) {
		cols.add(shortHeader(locale))
	}
	for _, locale := range sortedKeys(l.synonyms) {
		for i := 1; i <= l.synonyms[locale]; i++ {
			cols.add(synonymHeader(i, locale))
		}
	}
	for _, locale := range sortedKeys(l.description) {
		cols.add(descHeader(locale))
	}
	cols.add(colClass)
	cols.add(colDatatype)
	cols.add(colAnswers)
	cols.add(colMembers)
	if l.sameAs {
		cols.add(colSameAs)
	}
	for _, t := range sortedKeys(l.mapTypes) {
		cols.add(mappingsPrefix + t)
	}
	if l.numeric {
		for _, nc := range numericColumns {
			cols.add(nc.header)
		}
	}
	return &cols
}

func conceptTable(g *graph.Graph) *Table {
	concepts := g.Concepts()
	cols := scan(concepts).header()
	t := &Table{Domain: DomainConcepts, Header: cols.names}
	for _, c := range concepts {
		t.Rows = append(t.Rows, conceptRow(c, cols))
	}
	return t
}

func conceptRow(c *graph.Concept, cols *columns) []string {
	row := make([]string, len(cols.names))
	set := func(header, value string) {
		if i, ok := cols.index[header]; ok {
			row[i] = value
		}
	}

	set(colUUID, c.UUID)
	set(colRetire, retire(c.Retired))

	for _, locale := range c.Locales() {
		if n := c.FullySpecifiedName(locale); n != nil {
			set(fsnHeader(locale), n.Name)
		}
		if n := c.ShortName(locale); n != nil {
			set(shortHeader(locale), n.Name)
		}
		for i, n := range c.Synonyms(locale) {
			set(synonymHeader(i+1, locale), n.Name)
		}
		if d := c.Description(locale); d != nil {
			set(descHeader(locale), d.Description)
		}
	}

	set(colClass, c.Class.Target().Name)
	set(colDatatype, c.Datatype.Target().Name)

	answers := make([]string, 0, len(c.Answers))
	for _, a := range c.Answers {
		answers = append(answers, a.Answer.ID)
	}
	set(colAnswers, strings.Join(answers, listSeparator))

	members := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, m.Member.ID)
	}
	set(colMembers, strings.Join(members, listSeparator))

	byType := make(map[string][]string)
	for _, m := range c.Mappings {
		byType[mapType(m)] = append(byType[mapType(m)], m.Source().Name+":"+m.Code())
	}
	for t, codes := range byType {
		sort.Strings(codes)
		header := colSameAs
		if t != "" {
			header = mappingsPrefix + t
		}
		set(header, strings.Join(codes, listSeparator))
	}

	if c.Numeric != nil {
		for _, nc := range numericColumns {
			set(nc.header, nc.value(c.Numeric))
		}
	}
	return row
}
