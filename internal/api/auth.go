package api

import (
	"errors"
	"net/http"
	"strings"

	"vrptw/internal/auth"
)

var errNoToken = errors.New("missing bearer token")

// getPrincipal extracts tenant and role from the bearer token.
// In dev mode a request without Authorization falls back to the X-Tenant-Id
// and X-Role headers, defaulting to the demo tenant as admin.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, error) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		return s.Auth.Verify(tok)
	}
	switch s.Auth.Mode {
	case auth.ModeOff:
		return s.Auth.Verify("")
	case auth.ModeDev:
		tenant := r.Header.Get("X-Tenant-Id")
		if tenant == "" {
			tenant = auth.DefaultTenant
		}
		role := strings.ToLower(r.Header.Get("X-Role"))
		if role == "" {
			role = "admin"
		}
		return auth.Principal{Tenant: tenant, Role: role}, nil
	}
	return auth.Principal{}, errNoToken
}

// principal writes a 401 problem and returns false when the request is not authenticated.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	pr, err := s.getPrincipal(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="vrptw"`)
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return auth.Principal{}, false
	}
	return pr, true
}
