package services

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cppla/billboard/utils"
)

const (
	titleMinLen = 2
	titleMaxLen = 30
)

// ArticleInput carries the client editable article fields.
type ArticleInput struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// Normalize returns in as it will be stored: title trimmed, content
// sanitized, dates in UTC.
func (in ArticleInput) Normalize() ArticleInput {
	return ArticleInput{
		Title:     strings.TrimSpace(in.Title),
		Content:   utils.Sanitize(in.Content),
		StartDate: utcPtr(in.StartDate),
		EndDate:   utcPtr(in.EndDate),
	}
}

// ValidateArticle checks the normalized form of in against the board rules
// at now. All failing fields are reported together.
func ValidateArticle(in ArticleInput, now time.Time) error {
	return validateNormalized(in.Normalize(), now)
}

func validateNormalized(in ArticleInput, now time.Time) error {
	verr := &ValidationError{}

	if in.Title == "" {
		verr.add("title", "title.empty", "title is required")
	} else if n := utf8.RuneCountInString(in.Title); n < titleMinLen || n > titleMaxLen {
		verr.add("title", "title.size", "title must be between 2 and 30 characters")
	}

	if strings.TrimSpace(in.Content) == "" {
		verr.add("content", "content.empty", "content is required")
	}

	if in.StartDate != nil && in.EndDate != nil && in.StartDate.After(*in.EndDate) {
		verr.add("startDate", "startDate.invalid", "start date cannot be after end date")
	}
	if in.EndDate != nil && in.EndDate.Before(now) {
		verr.add("endDate", "endDate.past", "end date must be in the future")
	}

	return verr.orNil()
}
