package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/services"
	"github.com/Wikid82/proxybot/internal/util"
)

const (
	configPrefix     = "cfg"
	configEdit       = "edit"
	configClear      = "clear"
	configModal      = "modal"
	configInputID    = "nginx_config"
	configPreviewLen = 500
)

type customConfiguration struct {
	ops ProxyOperations
}

func (c *customConfiguration) Name() string { return "custom-configuration" }

func (c *customConfiguration) Describe() Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: "Manage custom Nginx configuration for a domain",
		Options:     []Option{domainOption("The domain name to manage custom configuration for")},
		Permission:  PermissionSendMessages,
	}
}

func (c *customConfiguration) Validate(in Input) error { return requireDomain(in) }

func (c *customConfiguration) Execute(ctx context.Context, in Input) Response {
	domain := in.Domain()
	host, err := c.ops.CurrentConfig(ctx, in.UserID, domain)
	if err != nil {
		return failure(logger.ForCommand(c.Name(), in.UserID), "retrieving configuration", "❌ Lookup Error", domain, err)
	}

	current := "*No custom configuration set*"
	if host.AdvancedConfig != "" {
		current = configBlock(host.AdvancedConfig)
	}
	resp := embed(ColourWarning, "⚙️ Custom Nginx Configuration",
		fmt.Sprintf("**Advanced Feature for `%s`**\n\nCustom Nginx configuration allows you to add advanced directives to your proxy.", domain),
		Field{Name: "🔧 Available Variables", Value: "• `$server` - Forward Hostname/IP\n• `$port` - Forward Port\n• `$forward_scheme` - Scheme (http/https)"},
		Field{Name: "⚠️ Important Notes", Value: "• `add_header` or `set_header` directives won't work in main config\n• For headers, create a custom location `/` block\n• Invalid configuration may break your proxy\n• Use with caution!"},
		Field{Name: "📝 Current Configuration", Value: current},
	)
	resp.Embed.Footer = "Click the button below to edit the configuration"
	resp.Buttons = []Button{
		{CustomID: configCustomID(configEdit, domain, in.UserID), Label: "Edit Configuration", Emoji: "✏️", Style: ButtonPrimary},
		{CustomID: configCustomID(configClear, domain, in.UserID), Label: "Clear Configuration", Emoji: "🗑️", Style: ButtonDanger},
	}
	return resp
}

func configBlock(text string) string {
	return "```nginx\n" + util.Truncate(text, configPreviewLen) + "\n```"
}

// configCustomID encodes a follow-up target. Domains never contain ':'.
func configCustomID(action, domain, userID string) string {
	return strings.Join([]string{configPrefix, action, domain, userID}, ":")
}

type configTarget struct {
	Action string
	Domain string
	UserID string
}

func parseConfigCustomID(id string) (configTarget, bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] != configPrefix || parts[2] == "" || parts[3] == "" {
		return configTarget{}, false
	}
	return configTarget{Action: parts[1], Domain: parts[2], UserID: parts[3]}, true
}

func notYours() Response {
	return Response{Content: "❌ You can only edit your own proxy configurations.", Ephemeral: true}
}

// handleButton serves the edit and clear buttons.
func (c *customConfiguration) handleButton(ctx context.Context, t configTarget, userID string) Response {
	if userID != t.UserID {
		return notYours()
	}
	log := logger.ForCommand(c.Name(), userID)

	switch t.Action {
	case configEdit:
		host, err := c.ops.CurrentConfig(ctx, userID, t.Domain)
		if err != nil {
			resp := failure(log, "retrieving configuration", "❌ Lookup Error", t.Domain, err)
			resp.Ephemeral = true
			return resp
		}
		return Response{Modal: &Modal{
			CustomID: configCustomID(configModal, t.Domain, userID),
			Title:    util.Truncate("Custom Config for "+t.Domain, 42),
			Input: TextInput{
				CustomID:    configInputID,
				Label:       "Nginx Configuration",
				Placeholder: "Enter your custom Nginx configuration...",
				Value:       host.AdvancedConfig,
				MaxLength:   services.MaxAdvancedConfigLength,
			},
		}}
	case configClear:
		resp := c.apply(ctx, log, t.Domain, userID, "")
		if resp.Embed != nil && resp.Embed.Colour == ColourSuccess {
			resp.Embed.Title = "✅ Configuration Cleared"
			resp.Embed.Description = fmt.Sprintf("Custom configuration has been cleared for `%s`", t.Domain)
			resp.Embed.Fields = nil
		}
		return resp
	default:
		return unexpected("handling the button")
	}
}

// handleModal applies a submitted configuration.
func (c *customConfiguration) handleModal(ctx context.Context, t configTarget, userID string, values map[string]string) Response {
	if userID != t.UserID {
		return notYours()
	}
	return c.apply(ctx, logger.ForCommand(c.Name(), userID), t.Domain, userID, values[configInputID])
}

func (c *customConfiguration) apply(ctx context.Context, log *logrus.Entry, domain, userID, text string) Response {
	var resp Response
	if _, err := c.ops.UpdateCustomConfig(ctx, userID, domain, text); err != nil {
		resp = failure(log, "updating the configuration", "❌ Failed to update configuration", domain, err)
	} else {
		value := "*Configuration cleared*"
		if text != "" {
			value = configBlock(text)
		}
		resp = embed(ColourSuccess, "✅ Configuration Updated",
			fmt.Sprintf("Custom configuration has been updated for `%s`", domain),
			Field{Name: "📝 New Configuration", Value: value})
	}
	resp.Ephemeral = true
	return resp
}
