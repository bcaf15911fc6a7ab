package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Wikid82/proxybot/internal/commands"
	"github.com/Wikid82/proxybot/internal/version"
)

// DefaultAPIBase is Discord's REST API root.
const DefaultAPIBase = "https://discord.com/api/v10"

var userAgent = "DiscordBot (https://github.com/Wikid82/proxybot, " + version.Version + ")"

// Test hook to allow overriding JSON marshaling
var jsonMarshalClient = json.Marshal

// Client talks to the Discord REST API for command registration and
// deferred interaction replies.
type Client struct {
	baseURL    string
	appID      string
	botToken   string
	httpClient *http.Client
}

// NewClient creates a Discord REST client. An empty baseURL uses DefaultAPIBase.
func NewClient(baseURL, appID, botToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type applicationCommand struct {
	Name             string                     `json:"name"`
	Description      string                     `json:"description"`
	Options          []applicationCommandOption `json:"options,omitempty"`
	IntegrationTypes []int                      `json:"integration_types"`
	Contexts         []int                      `json:"contexts"`
}

type applicationCommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	MinValue    *int   `json:"min_value,omitempty"`
	MaxValue    *int   `json:"max_value,omitempty"`
}

// RegisterCommands replaces the application's global commands. Commands are
// installable on guilds and users, and usable in guilds, bot DMs and
// private channels.
func (c *Client) RegisterCommands(ctx context.Context, descriptors []commands.Descriptor) error {
	if c.appID == "" || c.botToken == "" {
		return fmt.Errorf("discord application id and bot token are required")
	}
	body := make([]applicationCommand, 0, len(descriptors))
	for _, d := range descriptors {
		cmd := applicationCommand{
			Name:             d.Name,
			Description:      d.Description,
			IntegrationTypes: []int{0, 1},
			Contexts:         []int{0, 1, 2},
		}
		for _, o := range d.Options {
			cmd.Options = append(cmd.Options, applicationCommandOption{
				Type:        int(o.Type),
				Name:        o.Name,
				Description: o.Description,
				Required:    o.Required,
				MinValue:    o.MinValue,
				MaxValue:    o.MaxValue,
			})
		}
		body = append(body, cmd)
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/applications/%s/commands", c.appID), true, body)
}

// EditOriginal replaces a deferred interaction reply.
func (c *Client) EditOriginal(ctx context.Context, interactionToken string, data MessageData) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/webhooks/%s/%s/messages/@original", c.appID, interactionToken), false, data)
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in interface{}) error {
	payload, err := jsonMarshalClient(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if auth {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("discord API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
