package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is Google's OpenID Connect issuer URL.
const GoogleIssuer = "https://accounts.google.com"

// Identity is what PromptCraft needs to know about a Google account.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleConfig holds the OAuth client registration for Google.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// IssuerURL defaults to GoogleIssuer. Tests point it at an httptest server.
	IssuerURL string
}

// GoogleProvider runs the OpenID Connect Authorization Code flow against Google.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. We redirect the browser to Google's authorization endpoint with our
//     client ID, the requested scopes and a random state.
//  2. The user picks an account and approves.
//  3. Google redirects back to RedirectURL with a short-lived "code".
//  4. We exchange the code for tokens (server-to-server, using ClientSecret).
//  5. We call the userinfo endpoint with the access token.
//
// The endpoints are not hard-coded: oidc.NewProvider reads them from the
// issuer's /.well-known/openid-configuration document.
type GoogleProvider struct {
	config   *oauth2.Config
	provider *oidc.Provider
}

// NewGoogleProvider performs OIDC discovery and returns a ready provider.
// Discovery is a network call, so it takes a context and fails at startup
// if the issuer is unreachable.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	issuerURL := cfg.IssuerURL
	if issuerURL == "" {
		issuerURL = GoogleIssuer
	}

	p, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering OIDC provider %s: %w", issuerURL, err)
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     p.Endpoint(),
		},
		provider: p,
	}, nil
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// prompt=select_account makes Google show the account chooser even when the
// browser is already signed in, so a user can switch accounts after logout.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// userInfoClaims are the userinfo fields not already exposed by oidc.UserInfo.
type userInfoClaims struct {
	Name string `json:"name"`
}

// Exchange trades an authorization code for the account's identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("auth: fetching userinfo: %w", err)
	}

	var extra userInfoClaims
	if err := info.Claims(&extra); err != nil {
		return nil, fmt.Errorf("auth: decoding userinfo claims: %w", err)
	}

	if info.Email == "" {
		return nil, fmt.Errorf("auth: provider returned no email for subject %q", info.Subject)
	}

	return &Identity{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          nameOrDefault(extra.Name, info.Email),
	}, nil
}

// nameOrDefault returns name, or the local part of email when name is empty.
func nameOrDefault(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
