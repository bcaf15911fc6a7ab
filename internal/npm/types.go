package npm

import "encoding/json"

// ProxyHost mirrors the control-plane's proxy-host resource. Fields the bot
// never interprets are kept as raw JSON so they round-trip unchanged.
type ProxyHost struct {
	ID                    int             `json:"id"`
	DomainNames           []string        `json:"domain_names"`
	ForwardScheme         string          `json:"forward_scheme"`
	ForwardHost           string          `json:"forward_host"`
	ForwardPort           int             `json:"forward_port"`
	AccessListID          json.RawMessage `json:"access_list_id,omitempty"`
	CertificateID         json.RawMessage `json:"certificate_id,omitempty"`
	Meta                  json.RawMessage `json:"meta,omitempty"`
	AdvancedConfig        string          `json:"advanced_config"`
	Locations             json.RawMessage `json:"locations,omitempty"`
	BlockExploits         bool            `json:"block_exploits"`
	CachingEnabled        bool            `json:"caching_enabled"`
	AllowWebsocketUpgrade bool            `json:"allow_websocket_upgrade"`
	HTTP2Support          bool            `json:"http2_support"`
	HSTSEnabled           bool            `json:"hsts_enabled"`
	HSTSSubdomains        bool            `json:"hsts_subdomains"`
	SSLForced             bool            `json:"ssl_forced"`

	// Read-only fields populated by the control-plane.
	OwnerUserID int    `json:"owner_user_id,omitempty"`
	CreatedOn   string `json:"created_on,omitempty"`
	ModifiedOn  string `json:"modified_on,omitempty"`
}

// HasDomain reports whether domain is one of the host's names.
func (h *ProxyHost) HasDomain(domain string) bool {
	for _, d := range h.DomainNames {
		if equalFoldDomain(d, domain) {
			return true
		}
	}
	return false
}

// ProxyHostRequest is the writable field set sent on create and update.
// The control-plane has no partial update, so every update carries all of it.
type ProxyHostRequest struct {
	DomainNames           []string        `json:"domain_names"`
	ForwardScheme         string          `json:"forward_scheme"`
	ForwardHost           string          `json:"forward_host"`
	ForwardPort           int             `json:"forward_port"`
	AccessListID          json.RawMessage `json:"access_list_id,omitempty"`
	CertificateID         json.RawMessage `json:"certificate_id,omitempty"`
	Meta                  json.RawMessage `json:"meta,omitempty"`
	AdvancedConfig        string          `json:"advanced_config"`
	Locations             json.RawMessage `json:"locations"`
	BlockExploits         bool            `json:"block_exploits"`
	CachingEnabled        bool            `json:"caching_enabled"`
	AllowWebsocketUpgrade bool            `json:"allow_websocket_upgrade"`
	HTTP2Support          bool            `json:"http2_support"`
	HSTSEnabled           bool            `json:"hsts_enabled"`
	HSTSSubdomains        bool            `json:"hsts_subdomains"`
	SSLForced             bool            `json:"ssl_forced"`
}

// CertificateMeta is the meta block sent when requesting a new Let's Encrypt certificate.
type CertificateMeta struct {
	LetsencryptEmail string `json:"letsencrypt_email"`
	LetsencryptAgree bool   `json:"letsencrypt_agree"`
	DNSChallenge     bool   `json:"dns_challenge"`
}

type tokenRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}
