package twitch

import (
	"errors"
	"strings"

	irc "github.com/gempir/go-twitch-irc/v4"

	"github.com/chatsounds/soundboard-server/internal/model"
)

// ChatMessage is one inbound chat line with the sender's badge grants.
type ChatMessage struct {
	Channel  string
	Username string
	Text     string
	Grants   []model.AccessTier
}

// ChatClient is the live chat session owned by a Connection.
type ChatClient interface {
	// Connect blocks until the session ends. It returns ErrClientClosed after Disconnect.
	Connect() error
	Disconnect() error
	Join(channels ...string)
	OnConnect(fn func())
	OnMessage(fn func(ChatMessage))
}

// ClientFactory opens a chat client for the given bot credentials.
type ClientFactory func(username, oauth string) ChatClient

var ErrClientClosed = errors.New("chat client closed")

type ircClient struct {
	client *irc.Client
}

// NewIRCClient is the ClientFactory backed by Twitch IRC.
func NewIRCClient(username, oauth string) ChatClient {
	if !strings.HasPrefix(oauth, "oauth:") {
		oauth = "oauth:" + oauth
	}
	return &ircClient{client: irc.NewClient(username, oauth)}
}

func (c *ircClient) Connect() error {
	err := c.client.Connect()
	if errors.Is(err, irc.ErrClientDisconnected) {
		return ErrClientClosed
	}
	return err
}

func (c *ircClient) Disconnect() error {
	err := c.client.Disconnect()
	if errors.Is(err, irc.ErrConnectionIsNotOpen) {
		return nil
	}
	return err
}

func (c *ircClient) Join(channels ...string) {
	c.client.Join(channels...)
}

func (c *ircClient) OnConnect(fn func()) {
	c.client.OnConnect(fn)
}

func (c *ircClient) OnMessage(fn func(ChatMessage)) {
	c.client.OnPrivateMessage(func(m irc.PrivateMessage) {
		fn(ChatMessage{
			Channel:  m.Channel,
			Username: m.User.Name,
			Text:     m.Message,
			Grants:   BadgeGrants(m.User.Badges),
		})
	})
}

// BadgeGrants maps Twitch chat badges to access tiers. The broadcaster
// holds every tier.
func BadgeGrants(badges map[string]int) []model.AccessTier {
	var grants []model.AccessTier
	if _, ok := badges["broadcaster"]; ok {
		return []model.AccessTier{model.TierMod, model.TierSub, model.TierVIP}
	}
	if _, ok := badges["moderator"]; ok {
		grants = append(grants, model.TierMod)
	}
	if _, ok := badges["vip"]; ok {
		grants = append(grants, model.TierVIP)
	}
	_, sub := badges["subscriber"]
	_, founder := badges["founder"]
	if sub || founder {
		grants = append(grants, model.TierSub)
	}
	return grants
}
