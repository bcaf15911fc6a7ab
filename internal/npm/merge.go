package npm

import (
	"encoding/json"
	"strings"
)

// Patch lists the fields the bot is allowed to change on an existing host.
// A nil pointer leaves the field as it is.
type Patch struct {
	AdvancedConfig *string
	SSLForced      *bool
}

var emptyLocations = json.RawMessage(`[]`)

// MergeUpdate builds the full update body for current with patch applied.
// Every field not named by patch is copied from current.
func MergeUpdate(current ProxyHost, patch Patch) ProxyHostRequest {
	req := ProxyHostRequest{
		DomainNames:           append([]string(nil), current.DomainNames...),
		ForwardScheme:         current.ForwardScheme,
		ForwardHost:           current.ForwardHost,
		ForwardPort:           current.ForwardPort,
		AccessListID:          cloneRaw(current.AccessListID),
		CertificateID:         cloneRaw(current.CertificateID),
		Meta:                  cloneRaw(current.Meta),
		AdvancedConfig:        current.AdvancedConfig,
		Locations:             cloneRaw(current.Locations),
		BlockExploits:         current.BlockExploits,
		CachingEnabled:        current.CachingEnabled,
		AllowWebsocketUpgrade: current.AllowWebsocketUpgrade,
		HTTP2Support:          current.HTTP2Support,
		HSTSEnabled:           current.HSTSEnabled,
		HSTSSubdomains:        current.HSTSSubdomains,
		SSLForced:             current.SSLForced,
	}
	if len(req.Locations) == 0 || string(req.Locations) == "null" {
		req.Locations = emptyLocations
	}

	if patch.AdvancedConfig != nil {
		req.AdvancedConfig = *patch.AdvancedConfig
	}
	if patch.SSLForced != nil {
		req.SSLForced = *patch.SSLForced
	}
	return req
}

// NewProxyHostRequest returns the create body for a fresh single-domain host.
// A new certificate is requested and plain traffic is redirected to TLS.
func NewProxyHostRequest(domain, forwardHost string, forwardPort int, letsencryptEmail string) ProxyHostRequest {
	meta, _ := json.Marshal(CertificateMeta{
		LetsencryptEmail: letsencryptEmail,
		LetsencryptAgree: true,
		DNSChallenge:     false,
	})
	return ProxyHostRequest{
		DomainNames:           []string{domain},
		ForwardScheme:         "http",
		ForwardHost:           forwardHost,
		ForwardPort:           forwardPort,
		AccessListID:          json.RawMessage(`"0"`),
		CertificateID:         json.RawMessage(`"new"`),
		Meta:                  meta,
		AdvancedConfig:        "",
		Locations:             emptyLocations,
		BlockExploits:         true,
		CachingEnabled:        false,
		AllowWebsocketUpgrade: true,
		HTTP2Support:          false,
		HSTSEnabled:           false,
		HSTSSubdomains:        false,
		SSLForced:             true,
	}
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

func equalFoldDomain(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
