package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/npm"
	"github.com/Wikid82/proxybot/internal/services"
)

type createProxy struct {
	ops ProxyOperations
}

func (c *createProxy) Name() string { return "create-proxy" }

func (c *createProxy) Describe() Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: "Create a new reverse proxy for your domain",
		Options: []Option{
			domainOption("Your domain name (must point to the reverse proxy server)"),
			{Name: "target_ip", Description: "The internal IP address of your service (e.g., 192.168.1.100)", Type: OptionString, Required: true},
			{Name: "target_port", Description: "The port where your service is running (e.g., 3000, 8080)", Type: OptionInteger, Required: true, MinValue: intPtr(1), MaxValue: intPtr(65535)},
		},
		Permission: PermissionSendMessages,
	}
}

func (c *createProxy) Validate(in Input) error {
	if err := requireDomain(in); err != nil {
		return err
	}
	ip := in.String("target_ip")
	if ip == "" || strings.ContainsAny(ip, " \t") {
		return &npm.ValidationError{Field: "target_ip", Message: "IP address cannot be empty or contain spaces."}
	}
	if _, ok := in.Int("target_port"); !ok {
		return &npm.ValidationError{Field: "target_port", Message: "Port must be a number between 1 and 65535."}
	}
	return nil
}

func (c *createProxy) Execute(ctx context.Context, in Input) Response {
	domain := in.Domain()
	ip := in.String("target_ip")
	port, _ := in.Int("target_port")
	log := logger.ForCommand(c.Name(), in.UserID)

	res, err := c.ops.Create(ctx, in.UserID, domain, ip, port)
	var lwe *services.LedgerWriteError
	if errors.As(err, &lwe) && res != nil {
		log.WithError(err).Error("Proxy created without ledger entry")
		return embed(ColourWarning, "⚠️ Proxy created but not recorded",
			fmt.Sprintf("The proxy for `%s` was created, but it could not be saved to your list. An administrator has been notified.", domain),
			inline("Domain", domain),
			inline("Proxy ID", strconv.Itoa(res.Host.ID)),
		)
	}
	if err != nil {
		return failure(log, "creating the proxy", "❌ Creation Error", domain, err)
	}

	return embed(ColourSuccess, "✅ Proxy created successfully",
		fmt.Sprintf("The proxy for `%s` has been created!", domain),
		inline("Domain", domain),
		inline("Target IP", ip),
		inline("Target Port", strconv.Itoa(port)),
		inline("Proxy ID", strconv.Itoa(res.Host.ID)),
		inline("SSL", "Enabled (Let's Encrypt)"),
	)
}
