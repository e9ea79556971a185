package graph

import "sort"

// Locales returns the locales of the concept's names and descriptions,
// sorted.
func (c *Concept) Locales() []string {
	seen := make(map[string]struct{})
	for _, n := range c.Names {
		seen[n.Locale] = struct{}{}
	}
	for _, d := range c.Descriptions {
		seen[d.Locale] = struct{}{}
	}
	locales := make([]string, 0, len(seen))
	for l := range seen {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// PreferredName returns the preferred name of a locale: the name marked
// preferred, or else the fully specified name. Nil when neither exists.
func (c *Concept) PreferredName(locale string) *Name {
	var fsn *Name
	for _, n := range c.Names {
		if n.Locale != locale {
			continue
		}
		if n.Preferred {
			return n
		}
		if n.FullySpecified() && fsn == nil {
			fsn = n
		}
	}
	return fsn
}

// FullySpecifiedName returns the fully specified name of a locale.
func (c *Concept) FullySpecifiedName(locale string) *Name {
	for _, n := range c.Names {
		if n.Locale == locale && n.FullySpecified() {
			return n
		}
	}
	return nil
}

// ShortName returns the short name of a locale.
func (c *Concept) ShortName(locale string) *Name {
	for _, n := range c.Names {
		if n.Locale == locale && n.Short() {
			return n
		}
	}
	return nil
}

// Synonyms returns the names of a locale that are neither fully specified
// nor short, in uuid order.
func (c *Concept) Synonyms(locale string) []*Name {
	var out []*Name
	for _, n := range c.Names {
		if n.Locale == locale && !n.FullySpecified() && !n.Short() {
			out = append(out, n)
		}
	}
	return out
}

// Description returns the description of a locale.
func (c *Concept) Description(locale string) *Description {
	for _, d := range c.Descriptions {
		if d.Locale == locale {
			return d
		}
	}
	return nil
}
