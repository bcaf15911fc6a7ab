package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Wikid82/proxybot/internal/npm"
)

// MaxAdvancedConfigLength is the longest custom configuration accepted.
const MaxAdvancedConfigLength = 4000

var (
	domainRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)*$`)
	ipv4Regex   = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
)

// NormalizeDomain trims and lowercases a user supplied domain.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// ValidateDomain checks the hostname shape.
func ValidateDomain(domain string) error {
	if !domainRegex.MatchString(domain) {
		return &npm.ValidationError{Field: "domain", Message: "invalid domain format"}
	}
	return nil
}

// ValidateIPv4 accepts a dotted-quad address with every octet in 0-255.
func ValidateIPv4(ip string) error {
	m := ipv4Regex.FindStringSubmatch(ip)
	if m == nil {
		return &npm.ValidationError{Field: "target_ip", Message: "invalid IP address format"}
	}
	for _, octet := range m[1:] {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return &npm.ValidationError{Field: "target_ip", Message: "invalid IP address format"}
		}
	}
	return nil
}

// ValidatePort accepts 1-65535.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return &npm.ValidationError{Field: "target_port", Message: "port must be between 1 and 65535"}
	}
	return nil
}

// ValidateAdvancedConfig only enforces the length limit. The directives are
// checked by the control-plane.
func ValidateAdvancedConfig(text string) error {
	if len([]rune(text)) > MaxAdvancedConfigLength {
		return &npm.ValidationError{
			Field:   "advanced_config",
			Message: "configuration must be at most " + strconv.Itoa(MaxAdvancedConfigLength) + " characters",
		}
	}
	return nil
}
