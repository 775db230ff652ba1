package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/domain"
	"postline/internal/notion"
)

func decodePage(t *testing.T, raw string) notion.Page {
	t.Helper()
	var page notion.Page
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	return page
}

func TestDecodeFullPage(t *testing.T) {
	page := decodePage(t, `{
		"object": "page",
		"id": "page-1",
		"created_time": "2025-02-01T09:00:00.000Z",
		"last_edited_time": "2025-02-02T09:00:00.000Z",
		"properties": {
			"タイトル": {"id": "title", "type": "title", "title": [
				{"type": "text", "plain_text": "Spring "},
				{"type": "text", "plain_text": "campaign"}
			]},
			"1st check": {"id": "a", "type": "checkbox", "checkbox": true},
			"Check ②": {"id": "b", "type": "checkbox", "checkbox": false},
			"Canva URL": {"id": "c", "type": "url", "url": "https://canva.com/d/1"},
			"Category": {"id": "d", "type": "select", "select": {"name": "News"}},
			"Check ② 担当": {"id": "e", "type": "people", "people": [
				{"object": "user", "id": "u1", "name": "Aki"},
				{"object": "user", "id": "u2"}
			]},
			"著者": {"id": "f", "type": "people", "people": [{"object": "user", "id": "u3", "name": "Ben"}]},
			"ファイル&メディア": {"id": "g", "type": "files", "files": [
				{"name": "a.png", "type": "file", "file": {"url": "https://files/a.png"}},
				{"name": "b.png", "type": "external", "external": {"url": "https://cdn/b.png"}},
				{"name": "c.png", "type": "external"}
			]},
			"ステータス": {"id": "h", "type": "status", "status": {"name": "complete"}},
			"画像パス": {"id": "i", "type": "rich_text", "rich_text": [{"type": "text", "plain_text": "posts/1.png"}]}
		}
	}`)

	post := New(DefaultSchema()).Decode(page)
	assert.Equal(t, "page-1", post.ID)
	assert.Equal(t, "Spring campaign", post.Title)
	assert.True(t, post.FirstCheck)
	assert.False(t, post.SecondCheck)
	require.NotNil(t, post.CanvaURL)
	assert.Equal(t, "https://canva.com/d/1", *post.CanvaURL)
	assert.Equal(t, []string{"News"}, post.Categories)
	assert.Equal(t, []string{"Aki"}, post.SecondCheckAssignees)
	assert.Equal(t, []string{"Ben"}, post.Authors)
	assert.Equal(t, []string{"https://files/a.png", "https://cdn/b.png"}, post.FileURLs)
	require.NotNil(t, post.Status)
	assert.Equal(t, "complete", *post.Status)
	require.NotNil(t, post.ImagePath)
	assert.Equal(t, "posts/1.png", *post.ImagePath)
	require.NotNil(t, post.CreatedTime)
	require.NotNil(t, post.LastEditedTime)
	assert.True(t, post.LastEditedTime.After(*post.CreatedTime))
}

func TestDecodeToleratesMissingAndMistypedProperties(t *testing.T) {
	cases := map[string]string{
		"empty bag": `{"id": "p", "properties": {}}`,
		"wrong types": `{"id": "p", "properties": {
			"タイトル": {"type": "rich_text", "rich_text": [{"plain_text": "not a title"}]},
			"1st check": {"type": "url", "url": "https://x"},
			"Canva URL": {"type": "checkbox", "checkbox": true},
			"Category": {"type": "status", "status": {"name": "x"}},
			"著者": {"type": "people", "people": {"broken": true}},
			"ファイル&メディア": {"type": "files", "files": null},
			"ステータス": {"type": "status", "status": null},
			"画像パス": {"type": "rich_text", "rich_text": []}
		}}`,
		"malformed timestamps": `{"id": "p", "created_time": "yesterday", "properties": {}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			post := New(DefaultSchema()).Decode(decodePage(t, raw))
			assert.Equal(t, "p", post.ID)
			assert.Equal(t, "", post.Title)
			assert.False(t, post.FirstCheck)
			assert.Nil(t, post.CanvaURL)
			assert.Empty(t, post.Categories)
			assert.NotNil(t, post.Categories)
			assert.Empty(t, post.Authors)
			assert.Empty(t, post.FileURLs)
			assert.Nil(t, post.Status)
			assert.Nil(t, post.ImagePath)
			assert.Nil(t, post.CreatedTime)
		})
	}
}

func TestDecodeCategoryFallsBackToMultiSelect(t *testing.T) {
	page := decodePage(t, `{"id": "p", "properties": {
		"Category": {"type": "multi_select", "multi_select": [{"name": "News"}, {"name": ""}, {"name": "Event"}]}
	}}`)
	assert.Equal(t, []string{"News", "Event"}, New(DefaultSchema()).Decode(page).Categories)
}

func TestEncodeAlwaysWritesCoreFields(t *testing.T) {
	props := New(DefaultSchema()).Encode(domain.UpsertInput{Title: "  Hello  ", FirstCheck: true})
	require.Len(t, props, 3)
	assert.Equal(t, "Hello", notion.JoinPlain(props["タイトル"].Title))
	assert.True(t, props["1st check"].Checkbox)
	assert.Equal(t, notion.PropertyCheckbox, props["Check ②"].Type)
	assert.False(t, props["Check ②"].Checkbox)
}

func TestEncodeClearing(t *testing.T) {
	in := domain.UpsertInput{
		Title:      "t",
		CanvaURL:   domain.Some("  "),
		Categories: domain.Some([]string{}),
		Status:     domain.Some(""),
		ImagePath:  domain.Some(""),
	}
	encoded, err := json.Marshal(New(DefaultSchema()).Encode(in))
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(encoded, &body))
	assert.JSONEq(t, `{"url": null}`, string(body["Canva URL"]))
	assert.JSONEq(t, `{"select": null}`, string(body["Category"]))
	assert.JSONEq(t, `{"status": null}`, string(body["ステータス"]))
	assert.JSONEq(t, `{"rich_text": []}`, string(body["画像パス"]))
}

func TestEncodeWritesOnlyFirstCategory(t *testing.T) {
	props := New(DefaultSchema()).Encode(domain.UpsertInput{
		Title:      "t",
		Categories: domain.Some([]string{"News", "Event"}),
	})
	v := props["Category"]
	assert.Equal(t, notion.PropertySelect, v.Type)
	require.NotNil(t, v.Select)
	assert.Equal(t, "News", v.Select.Name)

	props = New(DefaultSchema()).Encode(domain.UpsertInput{
		Title:      "t",
		Categories: domain.Some([]string{"", "Event"}),
	})
	assert.Nil(t, props["Category"].Select)
}

func TestEncodeThenDecodeRoundTrip(t *testing.T) {
	c := New(DefaultSchema())
	in := domain.UpsertInput{
		Title:       "Round trip",
		FirstCheck:  true,
		SecondCheck: true,
		CanvaURL:    domain.Some("https://canva.com/d/2"),
		Categories:  domain.Some([]string{"Event", "News"}),
		Status:      domain.Some("draft"),
		ImagePath:   domain.Some("posts/2.png"),
	}
	encoded, err := json.Marshal(c.Encode(in))
	require.NoError(t, err)

	// Echo the patch back as a page property bag, the way Notion would.
	page := notion.Page{ID: "p"}
	require.NoError(t, json.Unmarshal(encoded, &page.Properties))
	post := c.Decode(page)

	assert.Equal(t, in.Title, post.Title)
	assert.True(t, post.FirstCheck)
	assert.True(t, post.SecondCheck)
	require.NotNil(t, post.CanvaURL)
	assert.Equal(t, "https://canva.com/d/2", *post.CanvaURL)
	assert.Equal(t, []string{"Event"}, post.Categories)
	require.NotNil(t, post.Status)
	assert.Equal(t, "draft", *post.Status)
	require.NotNil(t, post.ImagePath)
	assert.Equal(t, "posts/2.png", *post.ImagePath)
}

func TestEncodeOmitsUnsetFields(t *testing.T) {
	props := New(DefaultSchema()).Encode(domain.UpsertInput{Title: "t"})
	for _, name := range []string{"Canva URL", "Category", "ステータス", "画像パス"} {
		_, ok := props[name]
		assert.False(t, ok, name)
	}
}

func TestSchemaOverridesAndValidation(t *testing.T) {
	c := New(Schema{Title: "Name"})
	assert.Equal(t, "Name", c.Schema().Title)
	assert.Equal(t, "Category", c.Schema().Category)

	props := c.Encode(domain.UpsertInput{Title: "x"})
	_, ok := props["Name"]
	assert.True(t, ok)

	s := DefaultSchema()
	s.Authors = s.SecondCheckAssignees
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authors and second_check_assignees")
	assert.NoError(t, DefaultSchema().Validate())
}

func TestFirstMediaURL(t *testing.T) {
	page := decodePage(t, `{"id": "p", "properties": {
		"ファイル&メディア": {"type": "files", "files": [
			{"type": "external"},
			{"type": "external", "external": {"url": "https://cdn/x.png"}}
		]},
		"Other": {"type": "files", "files": [{"type": "file", "file": {"url": "https://files/y.png"}}]}
	}}`)
	u, ok := FirstMediaURL(page, "ファイル&メディア")
	require.True(t, ok)
	assert.Equal(t, "https://cdn/x.png", u)

	u, ok = FirstMediaURL(page, "Attachments")
	require.True(t, ok)
	assert.Equal(t, "https://files/y.png", u)

	empty := decodePage(t, `{"id": "p", "properties": {"ファイル&メディア": {"type": "files", "files": []}}}`)
	_, ok = FirstMediaURL(empty, "ファイル&メディア")
	assert.False(t, ok)
}
