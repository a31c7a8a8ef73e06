// Package sdk provides the CampHub dashboard client SDK: credential storage,
// the authenticated request pipeline with transparent token refresh, the
// cookie-session identity protocol, and edit-window permission checks.
package sdk

import (
	"net/http"
)

type authStrategy interface {
	Apply(req *http.Request)
}

type authChain []authStrategy

func (c authChain) Apply(req *http.Request) {
	for _, s := range c {
		if s == nil {
			continue
		}
		s.Apply(req)
	}
}

// bearerAuth reads the access token at apply time so a refresh mid-flight is
// picked up by the retried request.
type bearerAuth struct {
	creds *CredentialStore
}

func (b bearerAuth) Apply(req *http.Request) {
	pair := b.creds.Tokens()
	if pair.Access == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+pair.Access)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}
