package auth

import "strings"

// RequirementKind enumerates what a route demands from the caller.
type RequirementKind int

const (
	RequirePublic RequirementKind = iota
	RequireAuthenticated
	RequireRole
	RequireOwnerOrRole
)

// Requirement is one access demand. Construct with Public, Authenticated,
// Role or OwnerOrRole.
type Requirement struct {
	Kind RequirementKind
	Role string
}

// Public permits any caller, anonymous included.
func Public() Requirement { return Requirement{Kind: RequirePublic} }

// Authenticated permits any non-anonymous caller.
func Authenticated() Requirement { return Requirement{Kind: RequireAuthenticated} }

// Role permits callers carrying the named role.
func Role(name string) Requirement {
	return Requirement{Kind: RequireRole, Role: strings.ToLower(strings.TrimSpace(name))}
}

// OwnerOrRole permits the caller whose user id equals the path's {id}
// parameter, or any caller carrying the named role.
func OwnerOrRole(name string) Requirement {
	return Requirement{Kind: RequireOwnerOrRole, Role: strings.ToLower(strings.TrimSpace(name))}
}

// Rule binds a path pattern to a requirement. Patterns are slash-separated;
// a "{name}" segment matches any single segment and is captured as a
// parameter, a trailing "*" matches any remainder.
type Rule struct {
	Pattern     string
	Requirement Requirement
}

// Policy is the static, ordered route-to-requirement table. It is built once
// at startup and immutable thereafter; evaluation is first match wins. A path
// matched by no rule defaults to requiring authentication: fail closed,
// never fail open.
type Policy struct {
	rules []Rule
}

// NewPolicy builds a policy from the given rules, evaluated in order.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// Evaluate checks the path against the table for the given caller. It returns
// nil when access is permitted, ErrAuthenticationRequired when an anonymous
// caller hits a protected path, and ErrInsufficientRole or
// ErrOwnershipViolation when an authenticated caller fails the requirement.
func (p *Policy) Evaluate(path string, sc SecurityContext) error {
	for _, rule := range p.rules {
		params, ok := matchPattern(rule.Pattern, path)
		if !ok {
			continue
		}
		return evaluateRequirement(rule.Requirement, params, sc)
	}
	// Unmatched path: fail closed.
	return evaluateRequirement(Authenticated(), nil, sc)
}

func evaluateRequirement(req Requirement, params map[string]string, sc SecurityContext) error {
	switch req.Kind {
	case RequirePublic:
		return nil
	case RequireAuthenticated:
		if sc.IsAnonymous() {
			return ErrAuthenticationRequired
		}
		return nil
	case RequireRole:
		if sc.IsAnonymous() {
			return ErrAuthenticationRequired
		}
		if !sc.HasRole(req.Role) {
			return ErrInsufficientRole
		}
		return nil
	case RequireOwnerOrRole:
		if sc.IsAnonymous() {
			return ErrAuthenticationRequired
		}
		if owner, ok := params["id"]; ok && owner == sc.UserID {
			return nil
		}
		if sc.HasRole(req.Role) {
			return nil
		}
		return ErrOwnershipViolation
	default:
		return ErrAuthenticationRequired
	}
}

// matchPattern matches a slash-separated pattern against a path, capturing
// "{name}" parameters. A trailing "*" segment matches any non-empty remainder.
func matchPattern(pattern, path string) (map[string]string, bool) {
	patSegs := splitPath(pattern)
	pathSegs := splitPath(path)

	var params map[string]string
	for i, seg := range patSegs {
		if seg == "*" && i == len(patSegs)-1 {
			if len(pathSegs) >= i {
				return params, true
			}
			return nil, false
		}
		if i >= len(pathSegs) {
			return nil, false
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[name] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return nil, false
		}
	}
	if len(pathSegs) != len(patSegs) {
		return nil, false
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
