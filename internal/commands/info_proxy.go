package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Wikid82/proxybot/internal/logger"
)

type infoProxy struct {
	ops ProxyOperations
}

func (c *infoProxy) Name() string { return "info-proxy" }

func (c *infoProxy) Describe() Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: "Get detailed information about one of your reverse proxies",
		Options:     []Option{domainOption("The domain name to get info about")},
		Permission:  PermissionSendMessages,
	}
}

func (c *infoProxy) Validate(in Input) error { return requireDomain(in) }

func (c *infoProxy) Execute(ctx context.Context, in Input) Response {
	domain := in.Domain()
	info, err := c.ops.Info(ctx, in.UserID, domain)
	if err != nil {
		return failure(logger.ForCommand(c.Name(), in.UserID), "retrieving information", "❌ Lookup Error", domain, err)
	}

	status, colour := "🔴 Inactive", ColourError
	if info.Active {
		status, colour = "🟢 Active", ColourSuccess
	}
	resp := embed(colour, "📊 Proxy Information", fmt.Sprintf("Details for `%s`", domain),
		inline("Domain", info.Entry.Domain),
		inline("Target IP", info.Entry.TargetIP),
		inline("Target Port", strconv.Itoa(info.Entry.TargetPort)),
		inline("Status", status),
		inline("Proxy ID", strconv.Itoa(info.Entry.ID)),
		inline("Created", info.Entry.CreatedAt.Format("1/2/2006")),
	)

	if !info.Active {
		resp.Embed.Footer = "This proxy no longer exists on the server and has been removed from your list."
		return resp
	}
	resp.Embed.Fields = append(resp.Embed.Fields,
		inline("SSL", sslState(info.Host.SSLForced)),
		inline("Websockets", enabled(info.Host.AllowWebsocketUpgrade)),
		inline("Cache", enabled(info.Host.CachingEnabled)),
	)
	if info.Host.AdvancedConfig != "" {
		resp.Embed.Fields = append(resp.Embed.Fields, Field{Name: "Custom Configuration", Value: "✅ Set"})
	}
	return resp
}

func enabled(on bool) string {
	if on {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}
