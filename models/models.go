// forgeboard/models/models.go
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"forgeboard/config"
)

// --- Enumerations ---

type Category string

const (
	CategoryImprovements Category = "Improvements"
	CategoryBug          Category = "Bug"
	CategoryContent      Category = "Content"
	CategoryBalance      Category = "Balance"
	CategoryUIUX         Category = "UI/UX"

	// CategoryAll is the filter value that keeps every idea. It is never stored on an idea.
	CategoryAll Category = "All"
)

// Categories returns every assignable category in display order.
func Categories() []Category {
	return []Category{CategoryImprovements, CategoryBug, CategoryContent, CategoryBalance, CategoryUIUX}
}

// Valid reports whether c is an assignable category (All is not).
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves a filter value. Empty input and "All" both yield CategoryAll.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(CategoryAll)) {
		return CategoryAll, nil
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Status string

const (
	StatusOpen       Status = "Open"
	StatusPlanned    Status = "Planned"
	StatusInProgress Status = "In Development"
	StatusReleased   Status = "Released"
	StatusRejected   Status = "Rejected"
)

// Statuses returns every status in workflow order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusPlanned, StatusInProgress, StatusReleased, StatusRejected}
}

func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// --- Core Data Models ---

type Idea struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     Category  `json:"category"`
	Votes        int       `json:"votes"`
	Status       Status    `json:"status"`
	Author       string    `json:"author"`
	CreatedAt    time.Time `json:"createdAt"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	DevNote      string    `json:"devNote,omitempty"`
}

// User is the identity returned by the provider and persisted under the forge_user key.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar"`
	Discriminator string `json:"discriminator"`
}

// Valid reports whether every identity field is populated.
func (u User) Valid() bool {
	return u.ID != "" && u.Username != "" && u.Discriminator != "" && u.Avatar != ""
}

// Tag renders the user as "name#1234".
func (u User) Tag() string {
	return u.Username + "#" + u.Discriminator
}

// --- Form Input ---

const DefaultAuthor = "Anonymous"

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrTitleTooLong        = fmt.Errorf("title exceeds %d characters", config.MaxTitleLen)
	ErrDescriptionRequired = errors.New("description is required")
	ErrDescriptionTooLong  = fmt.Errorf("description exceeds %d characters", config.MaxDescriptionLen)
	ErrAuthorTooLong       = fmt.Errorf("author exceeds %d characters", config.MaxAuthorLen)
	ErrInvalidCategory     = errors.New("invalid category")
)

// IdeaInput is the author-supplied part of a new idea.
type IdeaInput struct {
	Title        string
	Description  string
	Category     Category
	Author       string
	ImageURL     string
	ThumbnailURL string
}

// Normalize trims whitespace and fills in the anonymous author.
func (in IdeaInput) Normalize() IdeaInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Author = strings.TrimSpace(in.Author)
	if in.Author == "" {
		in.Author = DefaultAuthor
	}
	return in
}

// Validate checks a normalized input.
func (in IdeaInput) Validate() error {
	switch {
	case in.Title == "":
		return ErrTitleRequired
	case utf8.RuneCountInString(in.Title) > config.MaxTitleLen:
		return ErrTitleTooLong
	case in.Description == "":
		return ErrDescriptionRequired
	case utf8.RuneCountInString(in.Description) > config.MaxDescriptionLen:
		return ErrDescriptionTooLong
	case utf8.RuneCountInString(in.Author) > config.MaxAuthorLen:
		return ErrAuthorTooLong
	case !in.Category.Valid():
		return ErrInvalidCategory
	}
	return nil
}

// --- Session Models ---

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is an ephemeral message. MessageID is a locale key; Data fills its template.
type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	MessageID string            `json:"messageId"`
	Data      map[string]string `json:"data,omitempty"`
	Created   time.Time         `json:"created"`
}

type AuthState int

const (
	LoggedOut AuthState = iota
	Verifying
	LoggedIn
)

func (s AuthState) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case LoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

func (s AuthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
