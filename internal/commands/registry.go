package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/metrics"
	"github.com/Wikid82/proxybot/internal/npm"
)

// Registry maps command names to commands. It is built once at startup and
// read concurrently afterwards.
type Registry struct {
	commands map[string]Command
	order    []string
	config   *customConfiguration
}

// NewRegistry registers every proxy command against ops.
func NewRegistry(ops ProxyOperations) *Registry {
	cfg := &customConfiguration{ops: ops}
	r := &Registry{commands: make(map[string]Command), config: cfg}
	for _, c := range []Command{
		&createProxy{ops: ops},
		&deleteProxy{ops: ops},
		&forceSSL{ops: ops},
		&infoProxy{ops: ops},
		&listProxy{ops: ops},
		cfg,
	} {
		r.register(c)
	}
	return r
}

func (r *Registry) register(c Command) {
	if _, dup := r.commands[c.Name()]; dup {
		panic(fmt.Sprintf("commands: duplicate command %q", c.Name()))
	}
	r.commands[c.Name()] = c
	r.order = append(r.order, c.Name())
}

// Get returns the command registered under name.
func (r *Registry) Get(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Descriptors lists every command in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name].Describe())
	}
	return out
}

// Dispatch validates and runs a command. It never panics: failures become
// a user-visible response.
func (r *Registry) Dispatch(ctx context.Context, name string, in Input) (resp Response) {
	c, ok := r.Get(name)
	if !ok {
		return Response{Content: "❌ Unknown command.", Ephemeral: true}
	}
	metrics.IncCommand(name)
	log := logger.ForCommand(name, in.UserID)
	defer recoverInto(log, &resp, "running this command")

	if err := c.Validate(in); err != nil {
		var verr *npm.ValidationError
		if errors.As(err, &verr) {
			return embed(ColourError, invalidTitle(verr.Field), verr.Message)
		}
		return failure(log, "running this command", "❌ Error", in.Domain(), err)
	}
	return c.Execute(ctx, in)
}

// HandleComponent routes a button press.
func (r *Registry) HandleComponent(ctx context.Context, customID, userID string) (resp Response) {
	t, ok := parseConfigCustomID(customID)
	if !ok || (t.Action != configEdit && t.Action != configClear) {
		return Response{Content: "❌ This button is no longer supported.", Ephemeral: true}
	}
	log := logger.ForCommand(r.config.Name(), userID)
	defer recoverInto(log, &resp, "handling the button")
	return r.config.handleButton(ctx, t, userID)
}

// HandleModal routes a modal submission.
func (r *Registry) HandleModal(ctx context.Context, customID, userID string, values map[string]string) (resp Response) {
	t, ok := parseConfigCustomID(customID)
	if !ok || t.Action != configModal {
		return Response{Content: "❌ This form is no longer supported.", Ephemeral: true}
	}
	log := logger.ForCommand(r.config.Name(), userID)
	defer recoverInto(log, &resp, "updating the configuration")
	return r.config.handleModal(ctx, t, userID, values)
}

func recoverInto(log *logrus.Entry, resp *Response, action string) {
	if rec := recover(); rec != nil {
		log.WithFields(logrus.Fields{"panic": rec, "stack": string(debug.Stack())}).Error("Recovered from command panic")
		*resp = unexpected(action)
	}
}

func invalidTitle(field string) string {
	switch field {
	case "domain":
		return "❌ Invalid Domain"
	case "target_ip":
		return "❌ Invalid IP Address"
	case "target_port":
		return "❌ Invalid Port"
	default:
		return "❌ Invalid Input"
	}
}
