package sdk

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/camphub/camphub-go/routes"
)

// csrfFormField is the form field name the backend expects the CSRF token
// under on the provider-redirect POST.
const csrfFormField = "csrfmiddlewaretoken"

// RedirectForm describes the same-origin POST form that hands the actor off
// to a third-party identity page. The hand-off is a full-page navigation,
// so it cannot go through the request pipeline; the host embeds the form
// and submits it in the browser.
type RedirectForm struct {
	Action string
	Fields map[string]string
}

// HTML renders a self-submitting form for embedding in a page. All values
// are escaped.
func (f RedirectForm) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<form method="post" action=%q>`, f.Action)
	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, `<input type="hidden" name=%q value=%q>`,
			template.HTMLEscapeString(name), template.HTMLEscapeString(f.Fields[name]))
	}
	b.WriteString(`</form><script>document.forms[0].submit()</script>`)
	return b.String()
}

// ProviderRedirectForm builds the provider hand-off form. The CSRF token is
// resolved up front because the browser-native submission bypasses the
// outbound interceptors.
func (s *SessionClient) ProviderRedirectForm(ctx context.Context, provider, process, callbackURL string) (RedirectForm, error) {
	if strings.TrimSpace(provider) == "" {
		return RedirectForm{}, fmt.Errorf("sdk: provider is required")
	}
	if strings.TrimSpace(callbackURL) == "" {
		return RedirectForm{}, fmt.Errorf("sdk: callback URL is required")
	}
	if process == "" {
		process = "login"
	}
	token, _ := s.client.csrf.Resolve(ctx)
	if token == "" {
		return RedirectForm{}, fmt.Errorf("sdk: csrf token unavailable for provider redirect")
	}
	return RedirectForm{
		Action: s.client.buildURL(routes.ProviderRedirect),
		Fields: map[string]string{
			"provider":     provider,
			"process":      process,
			"callback_url": callbackURL,
			csrfFormField:  token,
		},
	}, nil
}
