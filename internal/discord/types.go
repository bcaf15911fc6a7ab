// Package discord adapts Discord HTTP interactions to the command registry.
package discord

import (
	"encoding/json"
	"time"
)

// InteractionType is the kind of incoming interaction.
type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
	InteractionMessageComponent   InteractionType = 3
	InteractionModalSubmit        InteractionType = 5
)

// ResponseType is the kind of interaction callback.
type ResponseType int

const (
	ResponsePong                   ResponseType = 1
	ResponseChannelMessage         ResponseType = 4
	ResponseDeferredChannelMessage ResponseType = 5
	ResponseModal                  ResponseType = 9
)

// flagEphemeral hides a message from everyone but the invoking user.
const flagEphemeral = 1 << 6

// Interaction is the subset of the interaction payload the bot reads.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	GuildID       string          `json:"guild_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Token         string          `json:"token"`
}

// UserID returns the invoking user whether the interaction came from a
// guild (member) or a DM (user).
func (i *Interaction) UserID() string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Member is a guild member. Permissions is a decimal bitfield string.
type Member struct {
	User        *User  `json:"user"`
	Permissions string `json:"permissions"`
}

type commandData struct {
	Name    string          `json:"name"`
	Options []commandOption `json:"options"`
}

type commandOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value"`
}

type componentData struct {
	CustomID      string `json:"custom_id"`
	ComponentType int    `json:"component_type"`
}

type modalData struct {
	CustomID   string `json:"custom_id"`
	Components []struct {
		Components []struct {
			CustomID string `json:"custom_id"`
			Value    string `json:"value"`
		} `json:"components"`
	} `json:"components"`
}

// InteractionResponse is the callback body.
type InteractionResponse struct {
	Type ResponseType `json:"type"`
	Data interface{}  `json:"data,omitempty"`
}

// MessageData is a message callback or followup edit.
type MessageData struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []ActionRow `json:"components,omitempty"`
	Flags      int         `json:"flags,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// ActionRow holds buttons or a text input.
type ActionRow struct {
	Type       int         `json:"type"`
	Components []Component `json:"components"`
}

// Component is a button (type 2) or text input (type 4).
type Component struct {
	Type        int    `json:"type"`
	CustomID    string `json:"custom_id"`
	Label       string `json:"label,omitempty"`
	Style       int    `json:"style"`
	Emoji       *Emoji `json:"emoji,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Value       string `json:"value,omitempty"`
	MaxLength   int    `json:"max_length,omitempty"`
	Required    *bool  `json:"required,omitempty"`
}

type Emoji struct {
	Name string `json:"name"`
}

// ModalData is a modal callback body.
type ModalData struct {
	CustomID   string      `json:"custom_id"`
	Title      string      `json:"title"`
	Components []ActionRow `json:"components"`
}
