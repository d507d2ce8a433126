package views

import (
	"embed"
	"html"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	logoutTemplate         = "logout.html"
	loggedOutTemplate      = "logged_out.html"
	errorTemplate          = "error.html"
	notImplementedTemplate = "not_implemented.html"
)

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// logoutPage is the data for logout.html.
type logoutPage struct {
	LogoutURL        string
	AntiForgeryField template.HTML
}

// hiddenInput builds the anti-forgery field outside the template, so only the
// characters that are special in a quoted attribute get escaped. Base64 and
// JWT tokens come through verbatim.
func hiddenInput(name, value string) template.HTML {
	return template.HTML("<input type='hidden' name='" + html.EscapeString(name) +
		"' value='" + html.EscapeString(value) + "'>")
}
