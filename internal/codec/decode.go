package codec

import (
	"postline/internal/domain"
	"postline/internal/notion"
)

// Codec maps posts to and from Notion properties using a Schema.
type Codec struct {
	schema Schema
}

func New(schema Schema) *Codec {
	return &Codec{schema: schema.WithDefaults()}
}

func (c *Codec) Schema() Schema {
	return c.schema
}

// Decode builds a Post from a page. Missing properties, properties of an
// unexpected type and empty payloads all decode to the field's zero value;
// Decode never fails.
func (c *Codec) Decode(page notion.Page) domain.Post {
	props := page.Properties
	s := c.schema
	post := domain.Post{
		ID:                   page.ID,
		Title:                title(props, s.Title),
		FirstCheck:           checkbox(props, s.FirstCheck),
		SecondCheck:          checkbox(props, s.SecondCheck),
		CanvaURL:             url(props, s.CanvaURL),
		Categories:           categories(props, s.Category),
		SecondCheckAssignees: peopleNames(props, s.SecondCheckAssignees),
		Authors:              peopleNames(props, s.Authors),
		FileURLs:             fileURLs(props, s.Files),
		Status:               status(props, s.Status),
		ImagePath:            richText(props, s.ImagePath),
	}
	if ts, ok := page.Created(); ok {
		post.CreatedTime = &ts
	}
	if ts, ok := page.LastEdited(); ok {
		post.LastEditedTime = &ts
	}
	return post
}

// lookup returns the named property when it carries the wanted type.
func lookup(props map[string]notion.PropertyValue, name string, want notion.PropertyType) (notion.PropertyValue, bool) {
	v, ok := props[name]
	if !ok || v.Type != want {
		return notion.PropertyValue{}, false
	}
	return v, true
}

func title(props map[string]notion.PropertyValue, name string) string {
	v, ok := lookup(props, name, notion.PropertyTitle)
	if !ok {
		return ""
	}
	return notion.JoinPlain(v.Title)
}

func checkbox(props map[string]notion.PropertyValue, name string) bool {
	v, ok := lookup(props, name, notion.PropertyCheckbox)
	return ok && v.Checkbox
}

func url(props map[string]notion.PropertyValue, name string) *string {
	v, ok := lookup(props, name, notion.PropertyURL)
	if !ok || v.URL == nil {
		return nil
	}
	u := *v.URL
	return &u
}

func status(props map[string]notion.PropertyValue, name string) *string {
	v, ok := lookup(props, name, notion.PropertyStatus)
	if !ok || v.Status == nil || v.Status.Name == "" {
		return nil
	}
	s := v.Status.Name
	return &s
}

func richText(props map[string]notion.PropertyValue, name string) *string {
	v, ok := lookup(props, name, notion.PropertyRichText)
	if !ok {
		return nil
	}
	text := notion.JoinPlain(v.RichText)
	if text == "" {
		return nil
	}
	return &text
}

// categories prefers a select value and falls back to multi_select names.
func categories(props map[string]notion.PropertyValue, name string) []string {
	if v, ok := lookup(props, name, notion.PropertySelect); ok {
		if v.Select != nil && v.Select.Name != "" {
			return []string{v.Select.Name}
		}
		return []string{}
	}
	out := []string{}
	if v, ok := lookup(props, name, notion.PropertyMultiSelect); ok {
		for _, opt := range v.MultiSelect {
			if opt.Name != "" {
				out = append(out, opt.Name)
			}
		}
	}
	return out
}

func peopleNames(props map[string]notion.PropertyValue, name string) []string {
	out := []string{}
	v, ok := lookup(props, name, notion.PropertyPeople)
	if !ok {
		return out
	}
	for _, p := range v.People {
		if p.Name != "" {
			out = append(out, p.Name)
		}
	}
	return out
}

func fileURLs(props map[string]notion.PropertyValue, name string) []string {
	out := []string{}
	v, ok := lookup(props, name, notion.PropertyFiles)
	if !ok {
		return out
	}
	for _, f := range v.Files {
		if loc := f.Location(); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
