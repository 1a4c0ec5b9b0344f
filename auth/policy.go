package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cppla/billboard/models"
)

// Rule maps a path pattern and method set to an access requirement.
// Patterns are slash separated; "*" matches one segment and "**" any number of
// trailing or inner segments, including none. An empty Methods list matches every method.
type Rule struct {
	Pattern string
	Methods []string
	// Public rules skip token verification entirely.
	Public bool
	// Roles, when non-empty, requires the identity to hold at least one of them.
	Roles []string
}

// Policy is an ordered rule list evaluated once per request by the auth gate.
// The first matching rule wins; unmatched requests require an authenticated caller.
type Policy struct {
	rules []compiledRule
}

type compiledRule struct {
	Rule
	segments []string
	methods  map[string]struct{}
}

// NewPolicy compiles rules in order.
func NewPolicy(rules ...Rule) *Policy {
	p := &Policy{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{Rule: r, segments: splitPath(r.Pattern)}
		if len(r.Methods) > 0 {
			cr.methods = make(map[string]struct{}, len(r.Methods))
			for _, m := range r.Methods {
				cr.methods[strings.ToUpper(m)] = struct{}{}
			}
		}
		p.rules = append(p.rules, cr)
	}
	return p
}

// DefaultPolicy is the route table of the board API.
func DefaultPolicy() *Policy {
	return NewPolicy(
		Rule{Pattern: "/health", Public: true},
		Rule{Pattern: "/metrics", Public: true},
		Rule{Pattern: "/login", Methods: []string{http.MethodPost}, Public: true},
		Rule{Pattern: "/register", Methods: []string{http.MethodPost}, Public: true},
		Rule{Pattern: "/api/articles/**", Methods: []string{http.MethodGet}, Public: true},
		Rule{Pattern: "/api/articles/**", Methods: []string{http.MethodPost, http.MethodPut, http.MethodDelete}, Roles: []string{models.RoleUser}},
		Rule{Pattern: "/api/users/**", Roles: []string{models.RoleAdmin}},
		Rule{Pattern: "/api/me"},
	)
}

// NewRule builds a rule from its configuration form. access is one of
// "public", "authenticated" or "roles".
func NewRule(pattern string, methods []string, access string, roles []string) (Rule, error) {
	if !strings.HasPrefix(pattern, "/") {
		return Rule{}, fmt.Errorf("auth: pattern %q must start with /", pattern)
	}
	r := Rule{Pattern: pattern, Methods: methods}
	switch strings.ToLower(access) {
	case "public":
		r.Public = true
	case "authenticated", "":
	case "roles":
		if len(roles) == 0 {
			return Rule{}, fmt.Errorf("auth: rule %q requires at least one role", pattern)
		}
		r.Roles = roles
	default:
		return Rule{}, fmt.Errorf("auth: unknown access %q for %q", access, pattern)
	}
	return r, nil
}

// Match returns the first rule covering method and path.
func (p *Policy) Match(method, path string) Rule {
	segs := splitPath(path)
	method = strings.ToUpper(method)
	for _, r := range p.rules {
		if r.methods != nil {
			if _, ok := r.methods[method]; !ok {
				continue
			}
		}
		if matchSegments(r.segments, segs) {
			return r.Rule
		}
	}
	return Rule{Pattern: "/**"}
}

// Authorize decides whether id may use a route governed by rule. A nil id means
// the caller presented no credentials.
func (p *Policy) Authorize(rule Rule, id *Identity) error {
	if rule.Public {
		return nil
	}
	if id == nil {
		return ErrNoCredentials
	}
	if len(rule.Roles) == 0 {
		return nil
	}
	for _, role := range rule.Roles {
		if id.HasRole(role) {
			return nil
		}
	}
	return ErrForbidden
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	switch pattern[0] {
	case "**":
		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(path) > 0 && matchSegments(pattern[1:], path[1:])
	default:
		return len(path) > 0 && pattern[0] == path[0] && matchSegments(pattern[1:], path[1:])
	}
}
