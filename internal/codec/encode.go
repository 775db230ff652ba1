package codec

import (
	"strings"

	"postline/internal/domain"
	"postline/internal/notion"
)

// Encode builds the property patch for an upsert. Title and both checks are
// always written. Optional fields are written only when supplied; a supplied
// empty value clears the property. The category property is single-valued:
// only the first supplied category is written.
func (c *Codec) Encode(in domain.UpsertInput) notion.Properties {
	s := c.schema
	props := notion.Properties{
		s.Title:       notion.TitleValue(strings.TrimSpace(in.Title)),
		s.FirstCheck:  notion.CheckboxValue(in.FirstCheck),
		s.SecondCheck: notion.CheckboxValue(in.SecondCheck),
	}
	if in.CanvaURL.Set {
		var u *string
		if trimmed := strings.TrimSpace(in.CanvaURL.Value); trimmed != "" {
			u = &trimmed
		}
		props[s.CanvaURL] = notion.URLValue(u)
	}
	if in.Categories.Set {
		name := ""
		if len(in.Categories.Value) > 0 {
			name = strings.TrimSpace(in.Categories.Value[0])
		}
		props[s.Category] = notion.SelectValue(name)
	}
	if in.Status.Set {
		props[s.Status] = notion.StatusValue(strings.TrimSpace(in.Status.Value))
	}
	if in.ImagePath.Set {
		props[s.ImagePath] = notion.RichTextValue(strings.TrimSpace(in.ImagePath.Value))
	}
	return props
}
