package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bit-backend/domain/identity"
	"bit-backend/interfaces/http/rest/middleware"
	"bit-backend/interfaces/http/views"
	"bit-backend/pkg/auth"
	"bit-backend/pkg/dependency"
	appErrors "bit-backend/pkg/errors"
)

const (
	// SessionCookieName is the cookie anti-forgery tokens are bound to.
	SessionCookieName = "idsrv.session"

	purposeLogin  = "login"
	purposeLogout = "logout"

	defaultErrorMessage = "An unknown error occurred"

	postLogoutRedirectParam = "post_logout_redirect_uri"
)

// SiteConfig describes the identity site the pages belong to
type SiteConfig struct {
	SiteName              string
	SiteURL               string
	BasePath              string
	PostLogoutRedirectURL string
	// AllowedRedirectOrigins lists the origins, besides SiteURL's, that
	// post_logout_redirect_uri may point at.
	AllowedRedirectOrigins []string
	AllowRememberMe        bool
	ExternalProviders      []identity.LoginPageLink
	AdditionalLinks        []identity.LoginPageLink
}

// IdentityHandler serves the identity pages. It builds view models from the
// request and renders them through a views.ViewService, taken from the request's
// dependency scope when one is present.
type IdentityHandler struct {
	views        views.ViewService
	antiForgery  *auth.AntiForgery
	errorHandler *appErrors.ErrorHandler
	site         SiteConfig
	logger       *zap.Logger
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(
	viewService views.ViewService,
	antiForgery *auth.AntiForgery,
	errorHandler *appErrors.ErrorHandler,
	site SiteConfig,
	logger *zap.Logger,
) *IdentityHandler {
	if site.BasePath == "" {
		site.BasePath = "/identity"
	}
	return &IdentityHandler{
		views:        viewService,
		antiForgery:  antiForgery,
		errorHandler: errorHandler,
		site:         site,
		logger:       logger,
	}
}

// BasePath is where the identity pages are mounted
func (h *IdentityHandler) BasePath() string {
	return h.site.BasePath
}

// Routes mounts the identity pages on r
func (h *IdentityHandler) Routes(r chi.Router) {
	r.Get("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.Post("/logout", h.LogoutConfirm)
	r.Get("/error", h.Error)
	r.Get("/consent", h.Consent)
	r.Get("/permissions", h.Permissions)
}

// Login handles GET /identity/login
func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	common, err := h.common(r, purposeLogin)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	model := &identity.LoginViewModel{
		CommonViewModel:   common,
		LoginURL:          r.URL.RequestURI(),
		AllowRememberMe:   h.site.AllowRememberMe,
		RememberMe:        q.Get("remember_me") == "true",
		Username:          q.Get("login_hint"),
		ExternalProviders: h.site.ExternalProviders,
		AdditionalLinks:   h.site.AdditionalLinks,
		ErrorMessage:      q.Get("error"),
		ClientName:        q.Get("client_name"),
		ClientURL:         q.Get("client_uri"),
		ClientLogoURL:     q.Get("logo_uri"),
	}
	message := &identity.SignInMessage{
		ReturnURL:   q.Get("returnUrl"),
		ClientID:    q.Get("client_id"),
		IdP:         q.Get("idp"),
		Tenant:      q.Get("tenant"),
		DisplayMode: q.Get("display"),
		UILocales:   q.Get("ui_locales"),
		LoginHint:   q.Get("login_hint"),
		AcrValues:   strings.Fields(q.Get("acr_values")),
	}

	page, err := h.viewService(r).Login(r.Context(), model, message)
	h.writeView(w, r, page, err)
}

// Logout handles GET /identity/logout with a form that posts itself back
func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	common, err := h.common(r, purposeLogout)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	q := r.URL.Query()
	model := &identity.LogoutViewModel{
		CommonViewModel: common,
		ClientName:      q.Get("client_name"),
	}
	message := &identity.SignOutMessage{
		ReturnURL: h.trustedRedirect(q.Get(postLogoutRedirectParam)),
		ClientID:  q.Get("client_id"),
	}

	page, err := h.viewService(r).Logout(r.Context(), model, message)
	h.writeView(w, r, page, err)
}

// LogoutConfirm handles POST /identity/logout
func (h *IdentityHandler) LogoutConfirm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidationError("invalid form").WithCause(err))
		return
	}

	token := r.PostForm.Get(h.antiForgery.FieldName())
	if _, err := h.antiForgery.Validate(token, sessionID(r), purposeLogout); err != nil {
		h.logger.Warn("Anti-forgery validation failed",
			zap.String("requestID", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		h.errorHandler.Handle(w, r, appErrors.NewForbiddenError("invalid anti-forgery token").WithCause(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	q := r.URL.Query()
	redirectURL := h.trustedRedirect(q.Get(postLogoutRedirectParam))
	if redirectURL == "" {
		if requested := q.Get(postLogoutRedirectParam); requested != "" {
			h.logger.Warn("Rejected post logout redirect",
				zap.String("requestID", middleware.GetRequestID(r.Context())),
				zap.String("redirect", requested),
			)
		}
		redirectURL = h.site.PostLogoutRedirectURL
	}

	model := &identity.LoggedOutViewModel{
		CommonViewModel: identity.CommonViewModel{
			SiteName:  h.site.SiteName,
			SiteURL:   h.site.SiteURL,
			RequestID: middleware.GetRequestID(r.Context()),
		},
		RedirectURL:  redirectURL,
		ClientName:   q.Get("client_name"),
		AutoRedirect: redirectURL != "",
	}
	message := &identity.SignOutMessage{ReturnURL: redirectURL, ClientID: q.Get("client_id")}

	page, err := h.viewService(r).LoggedOut(r.Context(), model, message)
	h.writeView(w, r, page, err)
}

// Error handles GET /identity/error
func (h *IdentityHandler) Error(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		message = defaultErrorMessage
	}

	model := &identity.ErrorViewModel{
		CommonViewModel: h.commonWithoutToken(r),
		ErrorMessage:    message,
	}

	page, err := h.viewService(r).Error(r.Context(), model)
	h.writeView(w, r, page, err)
}

// Consent handles GET /identity/consent
func (h *IdentityHandler) Consent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	request := &identity.AuthorizeRequest{
		ClientID:     q.Get("client_id"),
		RedirectURI:  q.Get("redirect_uri"),
		ResponseType: q.Get("response_type"),
		State:        q.Get("state"),
		Scopes:       strings.Fields(q.Get("scope")),
	}
	h.logger.Debug("Consent requested",
		zap.String("clientID", request.ClientID),
		zap.String("scope", request.ScopeString()),
	)

	model := &identity.ConsentViewModel{
		CommonViewModel: h.commonWithoutToken(r),
		ConsentURL:      r.URL.RequestURI(),
		ClientName:      q.Get("client_name"),
	}

	page, err := h.viewService(r).Consent(r.Context(), model, request)
	h.writeView(w, r, page, err)
}

// Permissions handles GET /identity/permissions
func (h *IdentityHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	model := &identity.ClientPermissionsViewModel{
		CommonViewModel:     h.commonWithoutToken(r),
		RevokePermissionURL: h.site.BasePath + "/permissions",
	}

	page, err := h.viewService(r).ClientPermissions(r.Context(), model)
	h.writeView(w, r, page, err)
}

func (h *IdentityHandler) common(r *http.Request, purpose string) (identity.CommonViewModel, error) {
	common := h.commonWithoutToken(r)

	token, err := h.antiForgery.Generate(sessionID(r), purpose)
	if err != nil {
		return common, appErrors.NewInternalError("failed to issue anti-forgery token").WithCause(err)
	}
	common.AntiForgery = &identity.AntiForgeryToken{Name: h.antiForgery.FieldName(), Value: token}
	return common, nil
}

func (h *IdentityHandler) commonWithoutToken(r *http.Request) identity.CommonViewModel {
	logoutURL := h.site.BasePath + "/logout"
	if r.URL.RawQuery != "" && strings.HasSuffix(r.URL.Path, "/logout") {
		q := r.URL.Query()
		if h.trustedRedirect(q.Get(postLogoutRedirectParam)) == "" {
			q.Del(postLogoutRedirectParam)
		}
		if len(q) > 0 {
			logoutURL += "?" + q.Encode()
		}
	}
	return identity.CommonViewModel{
		SiteName:    h.site.SiteName,
		SiteURL:     h.site.SiteURL,
		CurrentUser: r.Header.Get("X-Current-User"),
		LogoutURL:   logoutURL,
		RequestID:   middleware.GetRequestID(r.Context()),
	}
}

// viewService prefers the ViewService of the request scope, which carries
// request-bound logging, over the one the handler was built with.
func (h *IdentityHandler) viewService(r *http.Request) views.ViewService {
	scope, ok := dependency.FromContext(r.Context())
	if !ok {
		return h.views
	}
	v, found, err := dependency.ResolveOptional[views.ViewService](scope)
	if err != nil {
		h.logger.Warn("Failed to resolve view service from request scope", zap.Error(err))
		return h.views
	}
	if !found || v == nil {
		return h.views
	}
	return v
}

// trustedRedirect returns raw when it is a local path or an http(s) URL on
// SiteURL's origin or an allowed origin, and "" otherwise.
func (h *IdentityHandler) trustedRedirect(raw string) string {
	if raw == "" || strings.ContainsAny(raw, "\\\r\n\t") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" && u.Host == "" && u.User == nil {
		if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
			return raw
		}
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.User != nil {
		return ""
	}

	target := origin(u)
	if site, err := url.Parse(h.site.SiteURL); err == nil && site.Host != "" && origin(site) == target {
		return raw
	}
	for _, allowed := range h.site.AllowedRedirectOrigins {
		if a, err := url.Parse(strings.TrimSuffix(allowed, "/")); err == nil && a.Host != "" && origin(a) == target {
			return raw
		}
	}
	return ""
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func (h *IdentityHandler) writeView(w http.ResponseWriter, r *http.Request, page io.Reader, err error) {
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, page); err != nil {
		h.logger.Warn("Failed to write view", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}
