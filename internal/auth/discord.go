// AngelaMos | 2026
// discord.go

package auth

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/oauth2"

	"github.com/carterperez-dev/pitchfork-economy/internal/config"
)

const (
	discordAuthURL  = "https://discord.com/oauth2/authorize"
	discordTokenURL = "https://discord.com/api/oauth2/token"
)

// IdentityProvider runs the platform side of the login handshake.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*DiscordProfile, error)
}

type DiscordOAuth struct {
	cfg *oauth2.Config
}

func NewDiscordOAuth(c config.OAuthConfig) *DiscordOAuth {
	return &DiscordOAuth{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   discordAuthURL,
				TokenURL:  discordTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (d *DiscordOAuth) AuthCodeURL(state string) string {
	return d.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

// Identify exchanges code for a user token and reads the member's own
// profile with it.
func (d *DiscordOAuth) Identify(ctx context.Context, code string) (*DiscordProfile, error) {
	tok, err := d.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}

	session, err := discordgo.New("Bearer " + tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}

	u, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch discord identity: %w", err)
	}

	name := u.GlobalName
	if name == "" {
		name = u.Username
	}

	return &DiscordProfile{
		ID:        u.ID,
		Username:  name,
		AvatarURL: u.AvatarURL(""),
	}, nil
}
