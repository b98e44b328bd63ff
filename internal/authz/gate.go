package authz

import "net/http"

// Outcome is the result of a gate decision.
type Outcome int

const (
	Allow Outcome = iota
	DenyUnauthenticated
	DenyForbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision explains a gate outcome.
type Decision struct {
	Outcome    Outcome
	Protected  bool
	Permission string // required code, empty when none applies
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// HTTPStatus is 200 for Allow, otherwise 401 or 403.
func (d Decision) HTTPStatus() int {
	switch d.Outcome {
	case DenyUnauthenticated:
		return http.StatusUnauthorized
	case DenyForbidden:
		return http.StatusForbidden
	default:
		return http.StatusOK
	}
}

// Grants is the verified permission snapshot presented with a request.
type Grants interface {
	HasPermission(code string) bool
}

// Gate decides requests from the catalog and the presented grants only.
type Gate struct {
	catalog     *Catalog
	defaultDeny bool
}

// NewGate builds a gate. With defaultDeny set, a protected path whose verb has no
// catalog entry is forbidden instead of allowed.
func NewGate(catalog *Catalog, defaultDeny bool) *Gate {
	return &Gate{catalog: catalog, defaultDeny: defaultDeny}
}

func (g *Gate) Catalog() *Catalog {
	return g.catalog
}

// Decide evaluates one request. grants must be nil when no valid credential was
// presented; expired or tampered credentials count as absent.
func (g *Gate) Decide(path, method string, grants Grants) Decision {
	code, protected, found := g.catalog.Lookup(path, method)
	if !protected {
		return Decision{Outcome: Allow}
	}
	if grants == nil {
		return Decision{Outcome: DenyUnauthenticated, Protected: true, Permission: code}
	}
	if !found {
		if g.defaultDeny {
			return Decision{Outcome: DenyForbidden, Protected: true}
		}
		return Decision{Outcome: Allow, Protected: true}
	}
	if !grants.HasPermission(code) {
		return Decision{Outcome: DenyForbidden, Protected: true, Permission: code}
	}
	return Decision{Outcome: Allow, Protected: true, Permission: code}
}
