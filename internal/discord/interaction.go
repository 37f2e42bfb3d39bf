// Package discord adapts Discord's interaction protocol to the moderation
// engine: signature verification, the three inbound interaction shapes,
// role-based authorization, and webhook notifications for new submissions.
package discord

// Interaction types Discord sends us.
const (
	InteractionPing      = 1
	InteractionCommand   = 2
	InteractionComponent = 3
)

// Response types we send back.
const (
	ResponsePong           = 1
	ResponseChannelMessage = 4
)

// EphemeralFlag makes a response visible only to the invoking user.
const EphemeralFlag = 64

// Interaction is the inbound envelope. Member is set for guild invocations,
// User for DMs.
type Interaction struct {
	Type    int             `json:"type"`
	Data    InteractionData `json:"data"`
	Member  *Member         `json:"member"`
	GuildID string          `json:"guild_id"`
	User    *User           `json:"user"`
}

// InteractionData carries the command name and options (type 2) or the
// component custom_id (type 3).
type InteractionData struct {
	Name     string          `json:"name"`
	Options  []CommandOption `json:"options"`
	CustomID string          `json:"custom_id"`
}

// CommandOption is a named slash-command argument.
type CommandOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Member is the invoking guild member with their role IDs.
type Member struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"`
}

// User identifies the Discord account behind an interaction.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Response is the outbound envelope.
type Response struct {
	Type int           `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// ResponseData is the message body of a type-4 response.
type ResponseData struct {
	Content string `json:"content"`
	Flags   int    `json:"flags,omitempty"`
}

// actor returns the Discord user ID behind the interaction, preferring the
// guild member over the bare user.
func (in Interaction) actor() User {
	if in.Member != nil {
		return in.Member.User
	}
	if in.User != nil {
		return *in.User
	}
	return User{}
}

// roles returns the invoking member's role IDs, nil outside a guild.
func (in Interaction) roles() []string {
	if in.Member != nil {
		return in.Member.Roles
	}
	return nil
}

// option returns the value of the named slash-command option.
func (in Interaction) option(name string) string {
	for _, opt := range in.Data.Options {
		if opt.Name == name {
			return opt.Value
		}
	}
	return ""
}

func channelMessage(content string) Response {
	return Response{Type: ResponseChannelMessage, Data: &ResponseData{Content: content}}
}

func ephemeral(content string) Response {
	return Response{Type: ResponseChannelMessage, Data: &ResponseData{Content: content, Flags: EphemeralFlag}}
}
