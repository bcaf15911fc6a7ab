package commands

// Embed colours.
const (
	ColourSuccess = 0x00FF00
	ColourError   = 0xFF0000
	ColourWarning = 0xFFAA00
	ColourInfo    = 0x0099FF
)

// Field is one name/value pair of an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the rich message body.
type Embed struct {
	Title       string
	Description string
	Colour      int
	Fields      []Field
	Footer      string
}

// ButtonStyle mirrors the chat platform's button styles.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = 1
	ButtonDanger  ButtonStyle = 4
)

// Button is an interactive component attached to a message.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Style    ButtonStyle
}

// TextInput is the single paragraph input of a Modal.
type TextInput struct {
	CustomID    string
	Label       string
	Placeholder string
	Value       string
	MaxLength   int
	Required    bool
}

// Modal is a form shown in response to a button press.
type Modal struct {
	CustomID string
	Title    string
	Input    TextInput
}

// Response is what a command or follow-up returns. Exactly one of Embed,
// Content or Modal is set.
type Response struct {
	Content   string
	Embed     *Embed
	Buttons   []Button
	Modal     *Modal
	Ephemeral bool
}

func embed(colour int, title, description string, fields ...Field) Response {
	return Response{Embed: &Embed{Title: title, Description: description, Colour: colour, Fields: fields}}
}

func inline(name, value string) Field {
	return Field{Name: name, Value: value, Inline: true}
}
