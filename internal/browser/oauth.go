package browser

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	googleOAuth "golang.org/x/oauth2/google"
)

// linuxdoEndpoint is the LinuxDo Connect OAuth endpoint; the relay sites in
// the builtin catalog all support it as a login identity.
var linuxdoEndpoint = oauth2.Endpoint{
	AuthURL:  "https://connect.linux.do/oauth2/authorize",
	TokenURL: "https://connect.linux.do/oauth2/token",
}

// AuthorizeURL builds the authorization URL handed to the browser sidecar
// for an OAuth re-authentication. The sidecar performs the interactive part;
// the core only decides where the flow starts.
func AuthorizeURL(oauthProvider, callbackURL, state string) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(oauthProvider))

	var endpoint oauth2.Endpoint
	var scopes []string
	switch provider {
	case "github":
		endpoint = github.Endpoint
		scopes = []string{"read:user"}
	case "google":
		endpoint = googleOAuth.Endpoint
		scopes = []string{"openid", "email"}
	case "linuxdo":
		endpoint = linuxdoEndpoint
		scopes = []string{"user"}
	default:
		return "", fmt.Errorf("unsupported oauth provider %q", oauthProvider)
	}

	cfg := &oauth2.Config{
		ClientID:    clientIDFor(provider),
		RedirectURL: callbackURL,
		Scopes:      scopes,
		Endpoint:    endpoint,
	}
	return cfg.AuthCodeURL(state), nil
}

// clientIDFor reads the per-provider client ID from the environment, e.g.
// CHECKIN_OAUTH_GITHUB_CLIENT_ID. The relay site's own client ID is what the
// sidecar replays, so an empty value is allowed: the sidecar then follows
// the site's login page buttons instead of a direct authorize URL.
func clientIDFor(provider string) string {
	return strings.TrimSpace(os.Getenv("CHECKIN_OAUTH_" + strings.ToUpper(provider) + "_CLIENT_ID"))
}
