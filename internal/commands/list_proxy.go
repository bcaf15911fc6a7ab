package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Wikid82/proxybot/internal/logger"
)

type listProxy struct {
	ops ProxyOperations
}

func (c *listProxy) Name() string { return "list-proxy" }

func (c *listProxy) Describe() Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: "List all your reverse proxies",
		Permission:  PermissionSendMessages,
	}
}

func (c *listProxy) Validate(Input) error { return nil }

func (c *listProxy) Execute(ctx context.Context, in Input) Response {
	list, err := c.ops.List(ctx, in.UserID)
	if err != nil {
		return failure(logger.ForCommand(c.Name(), in.UserID), "retrieving the list", "❌ Lookup Error", "", err)
	}

	var b strings.Builder
	for _, st := range list.Checked {
		dot := "🔴"
		if st.Active {
			dot = "🟢"
		}
		fmt.Fprintf(&b, "%s **%s** → `%s:%d` (%s)\n", dot, st.Entry.Domain, st.Entry.TargetIP, st.Entry.TargetPort, st.Entry.CreatedAt.Format("1/2/2006"))
	}
	if list.Remaining > 0 {
		fmt.Fprintf(&b, "\n*... and %d more proxies*", list.Remaining)
	}

	resp := embed(ColourInfo, "📋 Your proxies", b.String(),
		inline("🟢 Active", strconv.Itoa(list.Active)),
		inline("🔴 Inactive", strconv.Itoa(list.Inactive)),
		inline("📊 Total", strconv.Itoa(list.Total)),
	)
	if list.Remaining > 0 {
		resp.Embed.Footer = fmt.Sprintf("Only the first %d proxies are checked for status. Use /info-proxy for more details on a specific proxy.", len(list.Checked))
	}
	return resp
}
