// Package views renders the identity pages to HTML.
package views

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"bit-backend/application/ports"
	"bit-backend/domain/identity"
	appErrors "bit-backend/pkg/errors"
)

// ModelPlaceholder marks where the login view model goes in the SSO page.
const ModelPlaceholder = "{model}"

// ViewService renders identity pages. Each method returns the complete HTML document.
type ViewService interface {
	Login(ctx context.Context, model *identity.LoginViewModel, message *identity.SignInMessage) (io.Reader, error)
	Logout(ctx context.Context, model *identity.LogoutViewModel, message *identity.SignOutMessage) (io.Reader, error)
	LoggedOut(ctx context.Context, model *identity.LoggedOutViewModel, message *identity.SignOutMessage) (io.Reader, error)
	Consent(ctx context.Context, model *identity.ConsentViewModel, request *identity.AuthorizeRequest) (io.Reader, error)
	ClientPermissions(ctx context.Context, model *identity.ClientPermissionsViewModel) (io.Reader, error)
	Error(ctx context.Context, model *identity.ErrorViewModel) (io.Reader, error)
}

// ViewRecorder records render metrics
type ViewRecorder interface {
	RecordView(view string, err error, duration time.Duration)
}

// DefaultViewService renders the built-in pages. The login page comes from an
// SsoPageProvider with the view model embedded as HTML encoded JSON.
type DefaultViewService struct {
	pages   ports.SsoPageProvider
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics ViewRecorder
}

var _ ViewService = (*DefaultViewService)(nil)

// NewDefaultViewService creates the view service. tracer and metrics may be nil.
func NewDefaultViewService(pages ports.SsoPageProvider, logger *zap.Logger, tracer trace.Tracer, metrics ViewRecorder) *DefaultViewService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("views")
	}
	return &DefaultViewService{
		pages:   pages,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
	}
}

// loginPayload is the JSON shape the login page script reads.
type loginPayload struct {
	AdditionalLinks   []identity.LoginPageLink   `json:"additionalLinks"`
	AllowRememberMe   bool                       `json:"allowRememberMe"`
	AntiForgery       *identity.AntiForgeryToken `json:"antiForgery"`
	ClientLogoURL     string                     `json:"clientLogoUrl"`
	ClientName        string                     `json:"clientName"`
	ClientURL         string                     `json:"clientUrl"`
	CurrentUser       string                     `json:"currentUser"`
	Custom            interface{}                `json:"custom"`
	ErrorMessage      string                     `json:"errorMessage"`
	ExternalProviders []identity.LoginPageLink   `json:"externalProviders"`
	LoginURL          string                     `json:"loginUrl"`
	LogoutURL         string                     `json:"logoutUrl"`
	RememberMe        bool                       `json:"rememberMe"`
	RequestID         string                     `json:"requestId"`
	SiteName          string                     `json:"siteName"`
	SiteURL           string                     `json:"siteUrl"`
	Username          string                     `json:"username"`
	ReturnURL         string                     `json:"returnUrl"`
}

func (s *DefaultViewService) Login(ctx context.Context, model *identity.LoginViewModel, message *identity.SignInMessage) (io.Reader, error) {
	return s.render(ctx, "login", func(ctx context.Context) (string, error) {
		if model == nil {
			return "", appErrors.NewInvalidArgumentError("model")
		}

		query, err := message.ReturnQuery()
		if err != nil {
			return "", appErrors.NewValidationError("invalid return url").WithCause(err)
		}

		custom := model.Custom
		if custom == nil && message != nil && message.ReturnURL != "" {
			state := query.Get("state")
			if state == "" {
				state = "{}"
			}
			custom, err = decodeState(state)
			if err != nil {
				return "", appErrors.NewValidationError("invalid state parameter in return url").WithCause(err)
			}
		}

		payload, err := encodeJSON(loginPayload{
			AdditionalLinks:   model.AdditionalLinks,
			AllowRememberMe:   model.AllowRememberMe,
			AntiForgery:       model.AntiForgery,
			ClientLogoURL:     model.ClientLogoURL,
			ClientName:        model.ClientName,
			ClientURL:         model.ClientURL,
			CurrentUser:       model.CurrentUser,
			Custom:            custom,
			ErrorMessage:      model.ErrorMessage,
			ExternalProviders: model.ExternalProviders,
			LoginURL:          model.LoginURL,
			LogoutURL:         model.LogoutURL,
			RememberMe:        model.RememberMe,
			RequestID:         model.RequestID,
			SiteName:          model.SiteName,
			SiteURL:           model.SiteURL,
			Username:          model.Username,
			ReturnURL:         query.Get("redirect_uri"),
		})
		if err != nil {
			return "", appErrors.NewInternalError("failed to encode login view model").WithCause(err)
		}

		page, err := s.pages.GetSsoPage(ctx)
		if err != nil {
			return "", appErrors.Wrap(err, "failed to load SSO page")
		}

		return strings.ReplaceAll(page, ModelPlaceholder, html.EscapeString(payload)), nil
	})
}

func (s *DefaultViewService) Logout(ctx context.Context, model *identity.LogoutViewModel, message *identity.SignOutMessage) (io.Reader, error) {
	return s.render(ctx, "logout", func(ctx context.Context) (string, error) {
		if model == nil {
			return "", appErrors.NewInvalidArgumentError("model")
		}
		if model.AntiForgery == nil {
			return "", appErrors.NewInvalidArgumentError("model.AntiForgery")
		}
		return execute(logoutTemplate, logoutPage{
			LogoutURL:        model.LogoutURL,
			AntiForgeryField: hiddenInput(model.AntiForgery.Name, model.AntiForgery.Value),
		})
	})
}

func (s *DefaultViewService) LoggedOut(ctx context.Context, model *identity.LoggedOutViewModel, message *identity.SignOutMessage) (io.Reader, error) {
	return s.render(ctx, "logged_out", func(ctx context.Context) (string, error) {
		if model == nil {
			return "", appErrors.NewInvalidArgumentError("model")
		}
		if model.RedirectURL != "" && !isHTTPURL(model.RedirectURL) {
			return "", appErrors.NewInvalidArgumentError("model.RedirectURL")
		}
		return execute(loggedOutTemplate, model)
	})
}

func (s *DefaultViewService) Consent(ctx context.Context, model *identity.ConsentViewModel, request *identity.AuthorizeRequest) (io.Reader, error) {
	return s.render(ctx, "consent", func(ctx context.Context) (string, error) {
		if model == nil {
			return "", appErrors.NewInvalidArgumentError("model")
		}
		return execute(notImplementedTemplate, "Consent")
	})
}

func (s *DefaultViewService) ClientPermissions(ctx context.Context, model *identity.ClientPermissionsViewModel) (io.Reader, error) {
	return s.render(ctx, "client_permissions", func(ctx context.Context) (string, error) {
		if model == nil {
			return "", appErrors.NewInvalidArgumentError("model")
		}
		return execute(notImplementedTemplate, "ClientPermissions")
	})
}

func (s *DefaultViewService) Error(ctx context.Context, model *identity.ErrorViewModel) (io.Reader, error) {
	return s.render(ctx, "error", func(ctx context.Context) (string, error) {
		if model == nil {
			return "", appErrors.NewInvalidArgumentError("model")
		}
		return execute(errorTemplate, model)
	})
}

// render wraps a page build with a span, metrics and logging.
func (s *DefaultViewService) render(ctx context.Context, view string, build func(context.Context) (string, error)) (io.Reader, error) {
	ctx, span := s.tracer.Start(ctx, "views."+view, trace.WithAttributes(attribute.String("view", view)))
	defer span.End()

	start := time.Now()
	content, err := build(ctx)
	if s.metrics != nil {
		s.metrics.RecordView(view, err, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("Failed to render view", zap.String("view", view), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("bytes", len(content)))
	return strings.NewReader(content), nil
}

func execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", appErrors.NewInternalError("failed to render " + name).WithCause(err)
	}
	return buf.String(), nil
}

// encodeJSON marshals v without Go's HTML escaping; the caller HTML encodes
// the whole document.
func encodeJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeState(state string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(state))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, appErrors.NewValidationError("trailing data after state object")
	}
	return v, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return true
	default:
		return false
	}
}
