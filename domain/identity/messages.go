package identity

import (
	"net/url"
	"strings"
)

// SignInMessage carries the state of a pending sign-in
type SignInMessage struct {
	ReturnURL   string
	ClientID    string
	IdP         string
	Tenant      string
	DisplayMode string
	UILocales   string
	LoginHint   string
	AcrValues   []string
}

// SignOutMessage carries the state of a pending sign-out
type SignOutMessage struct {
	ReturnURL string
	ClientID  string
}

// AuthorizeRequest is the validated authorize request a consent page belongs to
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	State        string
	Scopes       []string
}

// ReturnQuery parses the query string of the sign-in return URL. An empty
// return URL yields empty values.
func (m *SignInMessage) ReturnQuery() (url.Values, error) {
	if m == nil || m.ReturnURL == "" {
		return url.Values{}, nil
	}
	u, err := url.Parse(m.ReturnURL)
	if err != nil {
		return nil, err
	}
	return u.Query(), nil
}

// ScopeString returns the scopes joined the way the authorize endpoint received them
func (r *AuthorizeRequest) ScopeString() string {
	return strings.Join(r.Scopes, " ")
}
