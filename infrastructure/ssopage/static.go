// Package ssopage provides the login page template the login view is rendered into.
package ssopage

import (
	"context"
	_ "embed"

	"bit-backend/application/ports"
)

// ModelPlaceholder is replaced with the HTML encoded login view model.
const ModelPlaceholder = "{model}"

//go:embed assets/login.html
var defaultPage string

// DefaultPage returns the built-in login page
func DefaultPage() string {
	return defaultPage
}

// StaticProvider serves a fixed page
type StaticProvider struct {
	html string
}

var _ ports.SsoPageProvider = (*StaticProvider)(nil)

// NewStaticProvider serves html, or the built-in page when html is empty
func NewStaticProvider(html string) *StaticProvider {
	if html == "" {
		html = defaultPage
	}
	return &StaticProvider{html: html}
}

func (p *StaticProvider) GetSsoPage(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.html, nil
}
