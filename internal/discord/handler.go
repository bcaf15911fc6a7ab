package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/commands"
	"github.com/Wikid82/proxybot/internal/logger"
)

// DefaultPermissionTemplate is used when no template is configured.
const DefaultPermissionTemplate = "❌ You need the `{perm}` permission to use this command."

const followupTimeout = 2 * time.Minute

// Followup edits a deferred reply once the command has finished.
type Followup interface {
	EditOriginal(ctx context.Context, interactionToken string, data MessageData) error
}

// Handler turns interactions into registry calls. With a Followup set,
// commands and modal submissions are deferred and answered asynchronously
// so slow control-plane calls do not exceed the callback deadline.
type Handler struct {
	registry           *commands.Registry
	followup           Followup
	permissionTemplate string
	now                func() time.Time
	wg                 sync.WaitGroup
}

func NewHandler(registry *commands.Registry, followup Followup, permissionTemplate string) *Handler {
	if permissionTemplate == "" {
		permissionTemplate = DefaultPermissionTemplate
	}
	return &Handler{
		registry:           registry,
		followup:           followup,
		permissionTemplate: permissionTemplate,
		now:                time.Now,
	}
}

// Wait blocks until deferred replies have been sent.
func (h *Handler) Wait() { h.wg.Wait() }

// Handle answers one interaction.
func (h *Handler) Handle(ctx context.Context, in Interaction) (InteractionResponse, error) {
	switch in.Type {
	case InteractionPing:
		return InteractionResponse{Type: ResponsePong}, nil
	case InteractionApplicationCommand:
		return h.handleCommand(ctx, in)
	case InteractionMessageComponent:
		var data componentData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return InteractionResponse{}, fmt.Errorf("decode component data: %w", err)
		}
		return toResponse(h.registry.HandleComponent(ctx, data.CustomID, in.UserID()), h.now()), nil
	case InteractionModalSubmit:
		var data modalData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return InteractionResponse{}, fmt.Errorf("decode modal data: %w", err)
		}
		values := make(map[string]string)
		for _, row := range data.Components {
			for _, c := range row.Components {
				values[c.CustomID] = c.Value
			}
		}
		run := func(ctx context.Context) commands.Response {
			return h.registry.HandleModal(ctx, data.CustomID, in.UserID(), values)
		}
		return h.respond(ctx, in, true, run), nil
	default:
		return InteractionResponse{}, fmt.Errorf("unsupported interaction type %d", in.Type)
	}
}

func (h *Handler) handleCommand(ctx context.Context, in Interaction) (InteractionResponse, error) {
	var data commandData
	if err := json.Unmarshal(in.Data, &data); err != nil {
		return InteractionResponse{}, fmt.Errorf("decode command data: %w", err)
	}
	cmd, ok := h.registry.Get(data.Name)
	if !ok {
		return toResponse(commands.Response{Content: "❌ Unknown command.", Ephemeral: true}, h.now()), nil
	}

	// User installs in DMs carry no member and skip the check.
	if perm := cmd.Describe().Permission; in.GuildID != "" && in.Member != nil && !hasPermission(in.Member.Permissions, perm.Bit) {
		content := strings.ReplaceAll(h.permissionTemplate, "{perm}", perm.Name)
		return toResponse(commands.Response{Content: content}, h.now()), nil
	}

	input := commands.Input{UserID: in.UserID(), Options: make(map[string]string, len(data.Options))}
	for _, o := range data.Options {
		input.Options[o.Name] = optionString(o.Value)
	}
	run := func(ctx context.Context) commands.Response {
		return h.registry.Dispatch(ctx, data.Name, input)
	}
	return h.respond(ctx, in, false, run), nil
}

// respond runs fn inline, or defers it when a followup client is set.
func (h *Handler) respond(ctx context.Context, in Interaction, ephemeral bool, fn func(context.Context) commands.Response) InteractionResponse {
	if h.followup == nil || in.Token == "" {
		resp := fn(ctx)
		if ephemeral {
			resp.Ephemeral = true
		}
		return toResponse(resp, h.now())
	}

	deferred := InteractionResponse{Type: ResponseDeferredChannelMessage}
	if ephemeral {
		deferred.Data = MessageData{Flags: flagEphemeral}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), followupTimeout)
		defer cancel()

		resp := fn(bg)
		if err := h.followup.EditOriginal(bg, in.Token, messageData(resp, h.now())); err != nil {
			logger.WithFields(logrus.Fields{"interaction_id": in.ID, "user_id": in.UserID()}).WithError(err).Error("Failed to send deferred reply")
		}
	}()
	return deferred
}

func hasPermission(bitfield string, bit int64) bool {
	perms, err := strconv.ParseInt(bitfield, 10, 64)
	if err != nil {
		return false
	}
	return perms&bit == bit
}

// optionString flattens a JSON option value to the string form commands
// expect.
func optionString(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
