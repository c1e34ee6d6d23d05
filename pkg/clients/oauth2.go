// Package clients provides OAuth2 authentication support
package clients

import (
	"context"
	"net/http"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"golang.org/x/oauth2"
)

// LinkedInTokenURL is the token endpoint for the refresh-token grant.
const LinkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"

// NewTokenSource returns a token source for the configured credentials.
// A refresh-token grant wins over a static access token when both are set,
// since the static token may already be expired.
func NewTokenSource(ctx context.Context, creds config.CredentialsConfig, base *http.Client) (oauth2.TokenSource, error) {
	switch {
	case creds.HasRefreshGrant():
		oauthCfg := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  LinkedInTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		if base != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		}
		return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}), nil
	case creds.HasAccessToken():
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: creds.AccessToken,
			TokenType:   "Bearer",
		}), nil
	default:
		return nil, errors.New(errors.ErrorTypeAuthentication, "no access token or refresh grant configured")
	}
}

// authTransport attaches bearer tokens from src to every request.
func authTransport(src oauth2.TokenSource, base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{
		Source: oauth2.ReuseTokenSource(nil, src),
		Base:   base,
	}
}
