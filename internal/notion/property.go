package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PropertyType is the type tag of a property value.
type PropertyType string

const (
	PropertyTitle       PropertyType = "title"
	PropertyRichText    PropertyType = "rich_text"
	PropertyCheckbox    PropertyType = "checkbox"
	PropertyURL         PropertyType = "url"
	PropertySelect      PropertyType = "select"
	PropertyMultiSelect PropertyType = "multi_select"
	PropertyStatus      PropertyType = "status"
	PropertyPeople      PropertyType = "people"
	PropertyFiles       PropertyType = "files"
	PropertyEmail       PropertyType = "email"
	PropertyRelation    PropertyType = "relation"
)

var knownPropertyTypes = []PropertyType{
	PropertyTitle,
	PropertyRichText,
	PropertyCheckbox,
	PropertyURL,
	PropertySelect,
	PropertyMultiSelect,
	PropertyStatus,
	PropertyPeople,
	PropertyFiles,
	PropertyEmail,
	PropertyRelation,
}

// PropertyValue is a tagged union over the supported property types. Only
// the field matching Type is meaningful.
type PropertyValue struct {
	ID   string
	Type PropertyType

	Title       []RichText
	RichText    []RichText
	Checkbox    bool
	URL         *string
	Select      *SelectOption
	MultiSelect []SelectOption
	Status      *SelectOption
	People      []User
	Files       []File
	Email       *string
	Relation    []Reference
}

func TitleValue(content string) PropertyValue {
	return PropertyValue{Type: PropertyTitle, Title: Text(content)}
}

func RichTextValue(content string) PropertyValue {
	return PropertyValue{Type: PropertyRichText, RichText: Text(content)}
}

func CheckboxValue(v bool) PropertyValue {
	return PropertyValue{Type: PropertyCheckbox, Checkbox: v}
}

// URLValue returns a url value; nil clears the property.
func URLValue(u *string) PropertyValue {
	return PropertyValue{Type: PropertyURL, URL: u}
}

// SelectValue returns a select value; an empty name clears the property.
func SelectValue(name string) PropertyValue {
	if name == "" {
		return PropertyValue{Type: PropertySelect}
	}
	return PropertyValue{Type: PropertySelect, Select: &SelectOption{Name: name}}
}

// StatusValue returns a status value; an empty name clears the property.
func StatusValue(name string) PropertyValue {
	if name == "" {
		return PropertyValue{Type: PropertyStatus}
	}
	return PropertyValue{Type: PropertyStatus, Status: &SelectOption{Name: name}}
}

func PeopleValue(ids ...string) PropertyValue {
	people := make([]User, 0, len(ids))
	for _, id := range ids {
		people = append(people, User{Object: "user", ID: id})
	}
	return PropertyValue{Type: PropertyPeople, People: people}
}

// UnmarshalJSON accepts both the read shape ({"id","type",<type>: payload})
// and the write shape ({<type>: payload}). A payload that does not match
// its type is dropped rather than reported.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	*v = PropertyValue{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if id, ok := raw["id"]; ok {
		_ = json.Unmarshal(id, &v.ID)
	}
	if t, ok := raw["type"]; ok {
		_ = json.Unmarshal(t, &v.Type)
	} else {
		for _, known := range knownPropertyTypes {
			if _, ok := raw[string(known)]; ok {
				v.Type = known
				break
			}
		}
	}
	payload, ok := raw[string(v.Type)]
	if !ok || isNull(payload) {
		return nil
	}
	var target any
	switch v.Type {
	case PropertyTitle:
		target = &v.Title
	case PropertyRichText:
		target = &v.RichText
	case PropertyCheckbox:
		target = &v.Checkbox
	case PropertyURL:
		target = &v.URL
	case PropertySelect:
		target = &v.Select
	case PropertyMultiSelect:
		target = &v.MultiSelect
	case PropertyStatus:
		target = &v.Status
	case PropertyPeople:
		target = &v.People
	case PropertyFiles:
		target = &v.Files
	case PropertyEmail:
		target = &v.Email
	case PropertyRelation:
		target = &v.Relation
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		id, typ := v.ID, v.Type
		*v = PropertyValue{ID: id, Type: typ}
	}
	return nil
}

// MarshalJSON writes the write shape {<type>: payload}.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Type {
	case PropertyTitle:
		payload = nonNil(v.Title)
	case PropertyRichText:
		payload = nonNil(v.RichText)
	case PropertyCheckbox:
		payload = v.Checkbox
	case PropertyURL:
		payload = v.URL
	case PropertySelect:
		payload = v.Select
	case PropertyMultiSelect:
		payload = nonNil(v.MultiSelect)
	case PropertyStatus:
		payload = v.Status
	case PropertyPeople:
		payload = nonNil(v.People)
	case PropertyFiles:
		payload = nonNil(v.Files)
	case PropertyEmail:
		payload = v.Email
	case PropertyRelation:
		payload = nonNil(v.Relation)
	default:
		if v.Type == "" {
			return nil, fmt.Errorf("notion: cannot encode property without a type")
		}
		return json.Marshal(map[string]any{"type": v.Type})
	}
	return json.Marshal(map[string]any{string(v.Type): payload})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
