// Package commands implements the chat commands users run against their
// proxies. Commands are transport neutral: they take an Input and return a
// Response that the chat transport renders.
package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/Wikid82/proxybot/internal/npm"
	"github.com/Wikid82/proxybot/internal/services"
)

// Command is one chat command.
type Command interface {
	Name() string
	Describe() Descriptor
	// Validate checks the raw input before anything leaves the process.
	Validate(in Input) error
	Execute(ctx context.Context, in Input) Response
}

// ProxyOperations is the lifecycle surface commands drive.
type ProxyOperations interface {
	ServerIP() string
	Create(ctx context.Context, userID, domain, ip string, port int) (*services.CreateResult, error)
	Delete(ctx context.Context, userID, domain string) (*services.DeleteOutcome, error)
	ToggleSSL(ctx context.Context, userID, domain string) (*services.ToggleResult, error)
	Info(ctx context.Context, userID, domain string) (*services.ProxyInfo, error)
	List(ctx context.Context, userID string) (*services.ProxyList, error)
	CurrentConfig(ctx context.Context, userID, domain string) (*npm.ProxyHost, error)
	UpdateCustomConfig(ctx context.Context, userID, domain, text string) (*npm.ProxyHost, error)
}

// OptionType mirrors the chat platform's option kinds.
type OptionType int

const (
	OptionString  OptionType = 3
	OptionInteger OptionType = 4
)

// Option describes one command argument.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	MinValue    *int
	MaxValue    *int
}

// Permission is a platform permission bit a member needs to run a command.
type Permission struct {
	Name string
	Bit  int64
}

// PermissionSendMessages is required by every command.
var PermissionSendMessages = Permission{Name: "SendMessages", Bit: 1 << 11}

// Descriptor is what gets registered with the chat platform.
type Descriptor struct {
	Name        string
	Description string
	Options     []Option
	Permission  Permission
}

// Input is one invocation. Option values arrive as strings regardless of
// their declared type.
type Input struct {
	UserID  string
	Options map[string]string
}

// String returns the trimmed option value.
func (in Input) String(name string) string {
	return strings.TrimSpace(in.Options[name])
}

// Int parses an integer option.
func (in Input) Int(name string) (int, bool) {
	v, err := strconv.Atoi(in.String(name))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Domain returns the normalised domain option.
func (in Input) Domain() string {
	return services.NormalizeDomain(in.Options["domain"])
}

func intPtr(v int) *int { return &v }

func domainOption(description string) Option {
	return Option{Name: "domain", Description: description, Type: OptionString, Required: true}
}

// requireDomain rejects an empty domain or one containing spaces.
func requireDomain(in Input) error {
	d := in.Domain()
	if d == "" || strings.ContainsAny(d, " \t") {
		return &npm.ValidationError{Field: "domain", Message: "Domain name cannot be empty or contain spaces."}
	}
	return nil
}
