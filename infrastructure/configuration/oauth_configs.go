package configuration

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"

	"insight-hub/domain/model"
)

// PlatformConfigs expands the two OAuth clients into per-platform endpoint
// configs. The three Google-backed platforms share one client, each with its
// own read-only scope unless the config overrides the scope list.
func (o OAuth) PlatformConfigs() map[model.Platform]*oauth2.Config {
	googleConfig := func(scopes ...string) *oauth2.Config {
		if len(o.Google.Scopes) > 0 {
			scopes = o.Google.Scopes
		}
		return &oauth2.Config{
			ClientID:     o.Google.ClientID,
			ClientSecret: o.Google.ClientSecret,
			RedirectURL:  o.Google.RedirectURI,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}
	}

	linkedinScopes := o.LinkedIn.Scopes
	if len(linkedinScopes) == 0 {
		linkedinScopes = []string{"r_organization_social", "rw_organization_admin"}
	}

	return map[model.Platform]*oauth2.Config{
		model.PlatformGoogleAnalytics: googleConfig("https://www.googleapis.com/auth/analytics.readonly"),
		model.PlatformSearchConsole:   googleConfig("https://www.googleapis.com/auth/webmasters.readonly"),
		model.PlatformYouTube:         googleConfig("https://www.googleapis.com/auth/youtube.readonly"),
		model.PlatformLinkedIn: {
			ClientID:     o.LinkedIn.ClientID,
			ClientSecret: o.LinkedIn.ClientSecret,
			RedirectURL:  o.LinkedIn.RedirectURI,
			Scopes:       linkedinScopes,
			Endpoint:     linkedin.Endpoint,
		},
	}
}
