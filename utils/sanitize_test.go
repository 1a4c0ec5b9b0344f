package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsScripts(t *testing.T) {
	out := Sanitize(`<p onclick="x()">hi</p><script>alert(1)</script>`)
	assert.Contains(t, out, "<p>hi</p>")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
}
