// Package identity resolves local users to Notion users by email and keeps
// the resulting identity links.
package identity

import (
	"context"
	"errors"
	"fmt"

	"postline/internal/notion"
)

// ErrNotFound is returned by a Strategy when no Notion user matches.
var ErrNotFound = errors.New("identity: no matching notion user")

// Strategy resolves an email to a Notion user id. Matching is exact and
// case-sensitive.
type Strategy interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// UserLister is the part of the Notion client used by UserScan.
type UserLister interface {
	ListUsers(ctx context.Context) ([]notion.User, error)
}

// UserScan enumerates workspace users and matches person emails.
type UserScan struct {
	Users UserLister
}

func (s UserScan) Resolve(ctx context.Context, email string) (string, error) {
	users, err := s.Users.ListUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("list notion users: %w", err)
	}
	for _, u := range users {
		if u.Person == nil {
			continue
		}
		if u.Person.Email == email {
			return u.ID, nil
		}
	}
	return "", ErrNotFound
}

// DatabaseQuerier is the part of the Notion client used by DirectoryQuery.
type DatabaseQuerier interface {
	QueryDatabasePage(ctx context.Context, databaseID string, query notion.DatabaseQuery) ([]notion.Page, string, error)
}

// DirectoryQuery looks the email up in a directory database whose records
// carry an email property and a people property naming the Notion user.
type DirectoryQuery struct {
	Pages          DatabaseQuerier
	DatabaseID     string
	EmailProperty  string
	PeopleProperty string
}

// directoryPageSize bounds the records scanned for a single email. Records
// beyond the first exact match are never read.
const directoryPageSize = 10

func (d DirectoryQuery) Resolve(ctx context.Context, email string) (string, error) {
	filter := notion.EmailEquals(d.EmailProperty, email)
	pages, _, err := d.Pages.QueryDatabasePage(ctx, d.DatabaseID, notion.DatabaseQuery{
		Filter:   &filter,
		PageSize: directoryPageSize,
	})
	if err != nil {
		return "", fmt.Errorf("query directory %s: %w", d.DatabaseID, err)
	}
	for _, page := range pages {
		if recordEmail(page, d.EmailProperty) != email {
			continue
		}
		people := page.Properties[d.PeopleProperty]
		if people.Type != notion.PropertyPeople {
			continue
		}
		for _, p := range people.People {
			if p.ID != "" {
				return p.ID, nil
			}
		}
	}
	return "", ErrNotFound
}

// recordEmail reads the email of a directory record. Rich text and title
// properties are accepted for directories that do not use an email column.
func recordEmail(page notion.Page, property string) string {
	v := page.Properties[property]
	switch v.Type {
	case notion.PropertyEmail:
		if v.Email != nil {
			return *v.Email
		}
	case notion.PropertyRichText:
		return notion.JoinPlain(v.RichText)
	case notion.PropertyTitle:
		return notion.JoinPlain(v.Title)
	}
	return ""
}
