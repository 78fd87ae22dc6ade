// Package policy decides which routes are reachable without a session. The
// decision lives in Rego so the public surface is declared in one place
// instead of being scattered across handler registrations.
package policy

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/rego"
)

const routePolicyPackage = "adminportal.routes"

// Session establishment, mapping fetches, dev login and logout are reachable
// without a session; everything else goes through the authorization gate.
// Logout must stay public: a client whose token already expired still needs
// its cookies cleared.
const routePolicy = `package adminportal.routes

default public = false

public if {
	input.method == "GET"
	startswith(input.path, "/v1/mappings")
}

public if {
	input.method == "POST"
	input.path == "/v1/sessions"
}

public if {
	startswith(input.path, "/v1/sessions/dev-login")
}

public if {
	input.method == "POST"
	startswith(input.path, "/v1/sessions/logout/")
}

public if {
	input.path == "/healthz"
}
`

// RouteEngine answers "is this route public" per (method, path). The policy
// is compiled once at construction.
type RouteEngine struct {
	query rego.PreparedEvalQuery
}

func NewRouteEngine(ctx context.Context) (*RouteEngine, error) {
	query, err := rego.New(
		rego.Query("data."+routePolicyPackage+".public"),
		rego.Module("routes.rego", routePolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile route policy: %w", err)
	}
	return &RouteEngine{query: query}, nil
}

// Public reports whether the route may be served without a valid session.
// Evaluation failures fail closed: the route is treated as gated.
func (e *RouteEngine) Public(ctx context.Context, method, path string) bool {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"method": method,
		"path":   path,
	}))
	if err != nil {
		log.Printf("policy: route evaluation for %s %s: %v", method, path, err)
		return false
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false
	}
	public, ok := rs[0].Expressions[0].Value.(bool)
	return ok && public
}
