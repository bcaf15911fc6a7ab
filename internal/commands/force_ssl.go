package commands

import (
	"context"
	"fmt"

	"github.com/Wikid82/proxybot/internal/logger"
)

type forceSSL struct {
	ops ProxyOperations
}

func (c *forceSSL) Name() string { return "force-ssl" }

func (c *forceSSL) Describe() Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: "Toggle SSL forcing for a domain (enable if disabled, disable if enabled)",
		Options:     []Option{domainOption("The domain name to toggle SSL forcing for")},
		Permission:  PermissionSendMessages,
	}
}

func (c *forceSSL) Validate(in Input) error { return requireDomain(in) }

func (c *forceSSL) Execute(ctx context.Context, in Input) Response {
	domain := in.Domain()
	res, err := c.ops.ToggleSSL(ctx, in.UserID, domain)
	if err != nil {
		return failure(logger.ForCommand(c.Name(), in.UserID), "toggling SSL", "❌ Failed to toggle SSL", domain, err)
	}

	action, icon, status, colour := "disabled", "🔓", "⚠️ SSL Not Forced", ColourWarning
	if res.Current {
		action, icon, status, colour = "enabled", "🔒", "✅ SSL Forced", ColourSuccess
	}
	return embed(colour, icon+" SSL Configuration Updated",
		fmt.Sprintf("SSL forcing has been **%s** for `%s`", action, domain),
		inline("Domain", domain),
		inline("SSL Status", status),
		inline("Previous State", sslState(res.Previous)),
	)
}

func sslState(forced bool) string {
	if forced {
		return "✅ Forced"
	}
	return "⚠️ Not Forced"
}
