// Package codec translates between Notion post pages and domain posts.
package codec

import (
	"fmt"
	"strings"
)

// Schema names the Notion property backing each post field.
type Schema struct {
	Title                string `yaml:"title"`
	FirstCheck           string `yaml:"first_check"`
	SecondCheck          string `yaml:"second_check"`
	CanvaURL             string `yaml:"canva_url"`
	Category             string `yaml:"category"`
	SecondCheckAssignees string `yaml:"second_check_assignees"`
	Authors              string `yaml:"authors"`
	Files                string `yaml:"files"`
	Status               string `yaml:"status"`
	ImagePath            string `yaml:"image_path"`
}

// DefaultSchema returns the property names of the production posts database.
func DefaultSchema() Schema {
	return Schema{
		Title:                "タイトル",
		FirstCheck:           "1st check",
		SecondCheck:          "Check ②",
		CanvaURL:             "Canva URL",
		Category:             "Category",
		SecondCheckAssignees: "Check ② 担当",
		Authors:              "著者",
		Files:                "ファイル&メディア",
		Status:               "ステータス",
		ImagePath:            "画像パス",
	}
}

// WithDefaults fills blank names from DefaultSchema.
func (s Schema) WithDefaults() Schema {
	d := DefaultSchema()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.Title, d.Title)
	fill(&s.FirstCheck, d.FirstCheck)
	fill(&s.SecondCheck, d.SecondCheck)
	fill(&s.CanvaURL, d.CanvaURL)
	fill(&s.Category, d.Category)
	fill(&s.SecondCheckAssignees, d.SecondCheckAssignees)
	fill(&s.Authors, d.Authors)
	fill(&s.Files, d.Files)
	fill(&s.Status, d.Status)
	fill(&s.ImagePath, d.ImagePath)
	return s
}

// Validate rejects schemas that map two fields to the same property.
func (s Schema) Validate() error {
	seen := map[string]string{}
	for field, name := range map[string]string{
		"title":                  s.Title,
		"first_check":            s.FirstCheck,
		"second_check":           s.SecondCheck,
		"canva_url":              s.CanvaURL,
		"category":               s.Category,
		"second_check_assignees": s.SecondCheckAssignees,
		"authors":                s.Authors,
		"files":                  s.Files,
		"status":                 s.Status,
		"image_path":             s.ImagePath,
	} {
		if name == "" {
			continue
		}
		if other, ok := seen[name]; ok {
			a, b := other, field
			if b < a {
				a, b = b, a
			}
			return fmt.Errorf("posts.properties: %s and %s both use property %q", a, b, name)
		}
		seen[name] = field
	}
	return nil
}
