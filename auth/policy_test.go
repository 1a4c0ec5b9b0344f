package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/billboard/models"
)

func TestMatchSegments(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/login", "/login", true},
		{"/login", "/login/", true},
		{"/login", "/logout", false},
		{"/api/articles/*", "/api/articles/7", true},
		{"/api/articles/*", "/api/articles", false},
		{"/api/articles/*", "/api/articles/7/files", false},
		{"/api/articles/**", "/api/articles", true},
		{"/api/articles/**", "/api/articles/7/files/2", true},
		{"/api/**/files", "/api/articles/7/files", true},
		{"/api/**/files", "/api/files", true},
		{"/**", "/", true},
	}
	for _, tc := range cases {
		got := matchSegments(splitPath(tc.pattern), splitPath(tc.path))
		assert.Equal(t, tc.want, got, "%s vs %s", tc.pattern, tc.path)
	}
}

func TestDefaultPolicyMatch(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.Match(http.MethodPost, "/login").Public)
	assert.True(t, p.Match(http.MethodPost, "/register").Public)
	assert.True(t, p.Match(http.MethodGet, "/health").Public)
	assert.True(t, p.Match(http.MethodGet, "/api/articles").Public)
	assert.True(t, p.Match(http.MethodGet, "/api/articles/12").Public)

	create := p.Match(http.MethodPost, "/api/articles")
	assert.False(t, create.Public)
	assert.Equal(t, []string{models.RoleUser}, create.Roles)

	del := p.Match(http.MethodDelete, "/api/articles/3")
	assert.Equal(t, []string{models.RoleUser}, del.Roles)

	users := p.Match(http.MethodGet, "/api/users/3")
	assert.Equal(t, []string{models.RoleAdmin}, users.Roles)

	me := p.Match(http.MethodGet, "/api/me")
	assert.False(t, me.Public)
	assert.Empty(t, me.Roles)

	fallback := p.Match(http.MethodGet, "/api/unknown")
	assert.False(t, fallback.Public)
	assert.Empty(t, fallback.Roles)
}

func TestFirstMatchingRuleWins(t *testing.T) {
	p := NewPolicy(
		Rule{Pattern: "/api/articles/special", Public: true},
		Rule{Pattern: "/api/articles/**", Roles: []string{models.RoleAdmin}},
	)
	assert.True(t, p.Match(http.MethodDelete, "/api/articles/special").Public)
	assert.Equal(t, []string{models.RoleAdmin}, p.Match(http.MethodDelete, "/api/articles/other").Roles)
}

func TestAuthorize(t *testing.T) {
	p := DefaultPolicy()
	user := &Identity{Username: "alice", Roles: []string{models.RoleUser}}
	admin := &Identity{Username: "root", Roles: []string{models.RoleUser, models.RoleAdmin}}

	public := p.Match(http.MethodGet, "/api/articles")
	assert.NoError(t, p.Authorize(public, nil))

	create := p.Match(http.MethodPost, "/api/articles")
	assert.True(t, errors.Is(p.Authorize(create, nil), ErrNoCredentials))
	assert.NoError(t, p.Authorize(create, user))

	users := p.Match(http.MethodGet, "/api/users")
	assert.True(t, errors.Is(p.Authorize(users, user), ErrForbidden))
	assert.NoError(t, p.Authorize(users, admin))

	me := p.Match(http.MethodGet, "/api/me")
	assert.NoError(t, p.Authorize(me, &Identity{Username: "norole"}))
}

func TestNewRule(t *testing.T) {
	r, err := NewRule("/docs/**", []string{"get"}, "public", nil)
	require.NoError(t, err)
	assert.True(t, r.Public)

	r, err = NewRule("/admin/**", nil, "roles", []string{models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, r.Roles)

	r, err = NewRule("/me", nil, "", nil)
	require.NoError(t, err)
	assert.False(t, r.Public)

	_, err = NewRule("/admin", nil, "roles", nil)
	assert.Error(t, err)
	_, err = NewRule("admin", nil, "public", nil)
	assert.Error(t, err)
	_, err = NewRule("/x", nil, "everyone", nil)
	assert.Error(t, err)

	p := NewPolicy(Rule{Pattern: "/docs/**", Methods: []string{"get"}, Public: true})
	assert.True(t, p.Match(http.MethodGet, "/docs/a").Public)
	assert.False(t, p.Match(http.MethodPost, "/docs/a").Public)
}
