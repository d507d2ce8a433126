// Package identity holds the view models and protocol messages the identity
// pages are rendered from.
package identity

// AntiForgeryToken is the hidden form field posted back with identity forms
type AntiForgeryToken struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoginPageLink is an external provider or additional link shown on the login page
type LoginPageLink struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
	Href string `json:"href"`
}

// CommonViewModel is shared by every identity page
type CommonViewModel struct {
	SiteName    string            `json:"siteName"`
	SiteURL     string            `json:"siteUrl"`
	CurrentUser string            `json:"currentUser"`
	LogoutURL   string            `json:"logoutUrl"`
	RequestID   string            `json:"requestId"`
	AntiForgery *AntiForgeryToken `json:"antiForgery"`
}

// LoginViewModel describes the login page
type LoginViewModel struct {
	CommonViewModel

	LoginURL          string          `json:"loginUrl"`
	AllowRememberMe   bool            `json:"allowRememberMe"`
	RememberMe        bool            `json:"rememberMe"`
	Username          string          `json:"username"`
	ExternalProviders []LoginPageLink `json:"externalProviders"`
	AdditionalLinks   []LoginPageLink `json:"additionalLinks"`
	ErrorMessage      string          `json:"errorMessage"`
	ClientName        string          `json:"clientName"`
	ClientURL         string          `json:"clientUrl"`
	ClientLogoURL     string          `json:"clientLogoUrl"`

	// Custom is free-form data for the page script. When nil it is filled from
	// the JSON in the return URL's state parameter.
	Custom interface{} `json:"custom"`
}

// LogoutViewModel describes the logout confirmation page
type LogoutViewModel struct {
	CommonViewModel

	ClientName string `json:"clientName"`
}

// LoggedOutViewModel describes the page shown after sign-out
type LoggedOutViewModel struct {
	CommonViewModel

	RedirectURL       string   `json:"redirectUrl"`
	ClientName        string   `json:"clientName"`
	IFrameURLs        []string `json:"iFrameUrls"`
	AutoRedirect      bool     `json:"autoRedirect"`
	AutoRedirectDelay int      `json:"autoRedirectDelay"`
}

// ScopeViewModel is one scope listed on the consent page
type ScopeViewModel struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Selected    bool   `json:"selected"`
	Emphasize   bool   `json:"emphasize"`
	Required    bool   `json:"required"`
}

// ConsentViewModel describes the consent page
type ConsentViewModel struct {
	CommonViewModel

	ErrorMessage         string           `json:"errorMessage"`
	ConsentURL           string           `json:"consentUrl"`
	ClientName           string           `json:"clientName"`
	ClientURL            string           `json:"clientUrl"`
	ClientLogoURL        string           `json:"clientLogoUrl"`
	AllowRememberConsent bool             `json:"allowRememberConsent"`
	RememberConsent      bool             `json:"rememberConsent"`
	IdentityScopes       []ScopeViewModel `json:"identityScopes"`
	ResourceScopes       []ScopeViewModel `json:"resourceScopes"`
}

// ClientPermission is one client a user granted access to
type ClientPermission struct {
	ClientID      string   `json:"clientId"`
	ClientName    string   `json:"clientName"`
	ClientURL     string   `json:"clientUrl"`
	ClientLogoURL string   `json:"clientLogoUrl"`
	Scopes        []string `json:"scopes"`
}

// ClientPermissionsViewModel describes the permissions management page
type ClientPermissionsViewModel struct {
	CommonViewModel

	RevokePermissionURL string             `json:"revokePermissionUrl"`
	Clients             []ClientPermission `json:"clients"`
}

// ErrorViewModel describes the error page
type ErrorViewModel struct {
	CommonViewModel

	ErrorMessage string `json:"errorMessage"`
}
