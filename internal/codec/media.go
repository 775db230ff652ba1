package codec

import (
	"sort"

	"postline/internal/notion"
)

// FirstMediaURL returns the first file URL of the named files property. When
// the page has no property by that name, the first files property in name
// order is used instead. ok is false when no URL is found.
func FirstMediaURL(page notion.Page, name string) (string, bool) {
	if v, found := page.Properties[name]; found {
		return firstLocation(v)
	}
	names := make([]string, 0, len(page.Properties))
	for n := range page.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v := page.Properties[n]
		if v.Type != notion.PropertyFiles {
			continue
		}
		if u, ok := firstLocation(v); ok {
			return u, true
		}
	}
	return "", false
}

func firstLocation(v notion.PropertyValue) (string, bool) {
	if v.Type != notion.PropertyFiles {
		return "", false
	}
	for _, f := range v.Files {
		if loc := f.Location(); loc != "" {
			return loc, true
		}
	}
	return "", false
}
