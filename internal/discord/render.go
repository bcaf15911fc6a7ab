package discord

import (
	"time"

	"github.com/Wikid82/proxybot/internal/commands"
)

const (
	componentActionRow = 1
	componentButton    = 2
	componentTextInput = 4
	textInputParagraph = 2
)

// messageData converts a command response into a message body.
func messageData(resp commands.Response, now time.Time) MessageData {
	data := MessageData{
		Content:    resp.Content,
		Embeds:     []Embed{},
		Components: []ActionRow{},
	}
	if resp.Ephemeral {
		data.Flags = flagEphemeral
	}
	if e := resp.Embed; e != nil {
		out := Embed{Title: e.Title, Description: e.Description, Color: e.Colour, Timestamp: now.UTC()}
		for _, f := range e.Fields {
			out.Fields = append(out.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			out.Footer = &EmbedFooter{Text: e.Footer}
		}
		data.Embeds = append(data.Embeds, out)
	}
	if len(resp.Buttons) > 0 {
		row := ActionRow{Type: componentActionRow}
		for _, b := range resp.Buttons {
			c := Component{Type: componentButton, CustomID: b.CustomID, Label: b.Label, Style: int(b.Style)}
			if b.Emoji != "" {
				c.Emoji = &Emoji{Name: b.Emoji}
			}
			row.Components = append(row.Components, c)
		}
		data.Components = append(data.Components, row)
	}
	return data
}

func modalResponse(m *commands.Modal) InteractionResponse {
	required := m.Input.Required
	return InteractionResponse{
		Type: ResponseModal,
		Data: ModalData{
			CustomID: m.CustomID,
			Title:    m.Title,
			Components: []ActionRow{{
				Type: componentActionRow,
				Components: []Component{{
					Type:        componentTextInput,
					CustomID:    m.Input.CustomID,
					Label:       m.Input.Label,
					Style:       textInputParagraph,
					Placeholder: m.Input.Placeholder,
					Value:       m.Input.Value,
					MaxLength:   m.Input.MaxLength,
					Required:    &required,
				}},
			}},
		},
	}
}

// toResponse renders an immediate callback.
func toResponse(resp commands.Response, now time.Time) InteractionResponse {
	if resp.Modal != nil {
		return modalResponse(resp.Modal)
	}
	return InteractionResponse{Type: ResponseChannelMessage, Data: messageData(resp, now)}
}
