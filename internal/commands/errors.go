package commands

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/ledger"
	"github.com/Wikid82/proxybot/internal/npm"
	"github.com/Wikid82/proxybot/internal/services"
)

// failure maps a lifecycle error onto the embed the user sees. action names
// what was being done ("creating the proxy"), failTitle is the title used
// for control-plane failures. Uncategorised errors are logged on log.
func failure(log *logrus.Entry, action, failTitle, domain string, err error) Response {
	var (
		verr     *npm.ValidationError
		mismatch *services.DNSMismatchError
		remote   *npm.RemoteError
	)

	switch {
	case errors.As(err, &mismatch):
		if mismatch.Observed == "" {
			return embed(ColourError, "❌ DNS Error",
				fmt.Sprintf("Unable to resolve domain `%s`. Make sure the domain exists and points to your reverse proxy server.", mismatch.Domain))
		}
		return embed(ColourError, "❌ Incorrect DNS",
			fmt.Sprintf("The domain `%s` currently points to `%s` but must point to your reverse proxy server.\n\n**The proxy cannot be created.** Please configure your DNS so that the domain points to `%s`.",
				mismatch.Domain, mismatch.Observed, mismatch.Required),
			inline("Current domain IP", mismatch.Observed),
			inline("Required reverse proxy IP", mismatch.Required),
		)
	case errors.As(err, &verr) && !verr.Remote:
		return embed(ColourError, "❌ Invalid Input", verr.Message)
	case errors.Is(err, npm.ErrConflict):
		return embed(ColourError, "❌ Error", fmt.Sprintf("The domain `%s` is already in use by an existing proxy.", domain))
	case errors.Is(err, services.ErrNoProxies):
		return embed(ColourError, "❌ No proxies found", "You don't have any proxies created.\n\nUse `/create-proxy` to create your first proxy!")
	case errors.Is(err, services.ErrNotOwned):
		return embed(ColourError, "❌ Proxy not found", fmt.Sprintf("You don't have a proxy for the domain `%s`.", domain))
	case errors.Is(err, services.ErrGone):
		return embed(ColourError, "❌ Proxy not active",
			fmt.Sprintf("The proxy for `%s` is not currently active on the server. It has been removed from your list.", domain))
	case errors.Is(err, ledger.ErrCorrupt), errors.Is(err, ledger.ErrIO):
		log.WithError(err).Error("Ledger unavailable")
		return embed(ColourError, "❌ Storage Error", "Your proxy records could not be accessed. Please contact an administrator.")
	case errors.As(err, &verr),
		errors.As(err, &remote),
		errors.Is(err, npm.ErrNotFound),
		errors.Is(err, npm.ErrAuthConfig),
		errors.Is(err, npm.ErrAuthRejected),
		errors.Is(err, npm.ErrEndpointNotFound),
		errors.Is(err, npm.ErrNoToken):
		log.WithError(err).Warn("Control-plane request failed")
		return embed(ColourError, failTitle, err.Error())
	default:
		log.WithError(err).Error("Unexpected command failure")
		return unexpected(action)
	}
}

func unexpected(action string) Response {
	return embed(ColourError, "❌ Unexpected Error", fmt.Sprintf("An unexpected error occurred while %s.", action))
}
