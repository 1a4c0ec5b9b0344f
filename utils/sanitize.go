package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize strips script and other unsafe markup from article content while
// keeping the formatting tags a user generated post may carry.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
