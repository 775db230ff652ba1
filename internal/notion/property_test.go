package notion_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/notion"
)

func TestPropertyValueDecodesReadShape(t *testing.T) {
	raw := `{
		"id": "abc",
		"type": "select",
		"select": {"id": "1", "name": "News", "color": "red"}
	}`
	var v notion.PropertyValue
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	assert.Equal(t, "abc", v.ID)
	assert.Equal(t, notion.PropertySelect, v.Type)
	require.NotNil(t, v.Select)
	assert.Equal(t, "News", v.Select.Name)
}

func TestPropertyValueInfersTypeFromWriteShape(t *testing.T) {
	var v notion.PropertyValue
	require.NoError(t, json.Unmarshal([]byte(`{"checkbox": true}`), &v))
	assert.Equal(t, notion.PropertyCheckbox, v.Type)
	assert.True(t, v.Checkbox)
}

func TestPropertyValueToleratesMismatchedPayload(t *testing.T) {
	cases := map[string]string{
		"payload wrong shape": `{"id":"x","type":"people","people":"nobody"}`,
		"null payload":        `{"id":"x","type":"select","select":null}`,
		"not an object":       `"oops"`,
		"unknown type":        `{"id":"x","type":"formula","formula":{"type":"number","number":3}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var v notion.PropertyValue
			require.NoError(t, json.Unmarshal([]byte(raw), &v))
			assert.Nil(t, v.People)
			assert.Nil(t, v.Select)
		})
	}
}

func TestPageDecodeSurvivesBadProperty(t *testing.T) {
	raw := `{
		"object": "page",
		"id": "p1",
		"created_time": "2025-03-01T10:00:00.000Z",
		"properties": {
			"Name": {"id": "title", "type": "title", "title": [{"type": "text", "plain_text": "Hello"}]},
			"Broken": {"id": "b", "type": "files", "files": {"unexpected": true}}
		}
	}`
	var page notion.Page
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	assert.True(t, page.HasProperties())
	assert.Equal(t, "Hello", notion.JoinPlain(page.Properties["Name"].Title))
	assert.Equal(t, notion.PropertyFiles, page.Properties["Broken"].Type)
	assert.Empty(t, page.Properties["Broken"].Files)
	created, ok := page.Created()
	require.True(t, ok)
	assert.Equal(t, 2025, created.Year())
}

func TestPropertyValueEncodesClearAsNull(t *testing.T) {
	cases := []struct {
		name  string
		value notion.PropertyValue
		want  string
	}{
		{"url cleared", notion.URLValue(nil), `{"url":null}`},
		{"select cleared", notion.SelectValue(""), `{"select":null}`},
		{"status cleared", notion.StatusValue(""), `{"status":null}`},
		{"select set", notion.SelectValue("News"), `{"select":{"name":"News"}}`},
		{"checkbox false", notion.CheckboxValue(false), `{"checkbox":false}`},
		{"rich text cleared", notion.RichTextValue(""), `{"rich_text":[]}`},
		{"people", notion.PeopleValue("u1"), `{"people":[{"object":"user","id":"u1"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := json.Marshal(tc.value)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(encoded))
		})
	}
}

func TestTextSplitsLongContent(t *testing.T) {
	content := strings.Repeat("あ", 4500)
	fragments := notion.Text(content)
	require.Len(t, fragments, 3)
	assert.Equal(t, content, notion.JoinPlain(fragments))
	assert.Len(t, []rune(fragments[0].Text.Content), 2000)
}

func TestFileLocation(t *testing.T) {
	hosted := notion.File{Type: "file", File: &notion.HostedFile{URL: "https://files/a.png"}}
	external := notion.File{Type: "external", External: &notion.ExternalFile{URL: "https://cdn/b.png"}}
	mismatched := notion.File{Type: "external", File: &notion.HostedFile{URL: "https://files/c.png"}}
	assert.Equal(t, "https://files/a.png", hosted.Location())
	assert.Equal(t, "https://cdn/b.png", external.Location())
	assert.Equal(t, "", mismatched.Location())
}
