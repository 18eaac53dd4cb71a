package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const discordAPI = "https://discord.com"

// DiscordInvite carries the approximate member counts of an invite's guild.
type DiscordInvite struct {
	Code  string `json:"code"`
	Guild struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"guild"`
	ApproximateMemberCount   int `json:"approximate_member_count"`
	ApproximatePresenceCount int `json:"approximate_presence_count"`
}

type Discord struct {
	*jsonClient
	baseURL string
}

func NewDiscord(baseURL string) *Discord {
	if baseURL == "" {
		baseURL = discordAPI
	}
	return &Discord{
		jsonClient: newJSONClient("discord", 10*time.Second, 1, 2),
		baseURL:    baseURL,
	}
}

func (d *Discord) Name() string { return "discord" }

// Invite resolves an invite code (or discord.gg URL) with member counts.
func (d *Discord) Invite(ctx context.Context, invite string) (*DiscordInvite, error) {
	code := inviteCode(invite)
	if code == "" {
		return nil, Missing(d.Name(), "discord_invite")
	}
	q := url.Values{}
	q.Set("with_counts", "true")

	var out DiscordInvite
	u := fmt.Sprintf("%s/api/v10/invites/%s", d.baseURL, url.PathEscape(code))
	if err := d.get(ctx, u, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func inviteCode(invite string) string {
	invite = strings.TrimSpace(invite)
	if i := strings.LastIndex(invite, "/"); i >= 0 {
		invite = invite[i+1:]
	}
	return invite
}
