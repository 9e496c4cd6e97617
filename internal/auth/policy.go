package auth

import (
	"net/http"
	"strings"
)

// Policy determines which roles may reach a route.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRoles resolves the roles allowed to call the request.
func (p Policy) RequiredRoles(r *http.Request) ([]Role, bool) {
	if r == nil {
		return nil, false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/payouts/generate":
		return PayoutOperators, true
	case path == "/api/v1/payouts/bulk":
		return PayoutApprovers, true
	case path == "/api/v1/payouts" || path == "/api/v1/payouts/vendors":
		return PayoutOperators, true
	case strings.HasPrefix(path, "/api/v1/payouts/"):
		if method == http.MethodGet {
			return PayoutOperators, true
		}
		return PayoutApprovers, true
	case path == "/api/v1/order-items/approve":
		return PayoutApprovers, true
	case strings.HasPrefix(path, "/api/v1/order-items/") && strings.HasSuffix(path, "/hold"):
		return PayoutOperators, true
	case strings.HasPrefix(path, "/api/v1/vendors/"):
		return PayoutOperators, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return PayoutOperators, true
		}
		return []Role{RoleSuperAdmin}, true
	}
	return nil, false
}
