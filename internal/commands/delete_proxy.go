package commands

import (
	"context"
	"fmt"

	"github.com/Wikid82/proxybot/internal/logger"
)

type deleteProxy struct {
	ops ProxyOperations
}

func (c *deleteProxy) Name() string { return "delete-proxy" }

func (c *deleteProxy) Describe() Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: "Delete one of your reverse proxies",
		Options:     []Option{domainOption("The domain name of the proxy to delete")},
		Permission:  PermissionSendMessages,
	}
}

func (c *deleteProxy) Validate(in Input) error { return requireDomain(in) }

func (c *deleteProxy) Execute(ctx context.Context, in Input) Response {
	domain := in.Domain()
	out, err := c.ops.Delete(ctx, in.UserID, domain)
	if err != nil {
		return failure(logger.ForCommand(c.Name(), in.UserID), "deleting the proxy", "❌ Deletion Error", domain, err)
	}
	if out.AlreadyGone {
		return embed(ColourWarning, "⚠️ Proxy already deleted",
			fmt.Sprintf("The proxy for `%s` no longer exists on the server. It has been removed from your list.", domain))
	}
	return embed(ColourSuccess, "✅ Proxy deleted",
		fmt.Sprintf("The proxy for `%s` has been successfully deleted.", domain),
		inline("Domain", domain),
		inline("Target", fmt.Sprintf("%s:%d", out.Entry.TargetIP, out.Entry.TargetPort)),
	)
}
