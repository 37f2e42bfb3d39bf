package discord

import (
	"context"
	"fmt"
	"strings"

	"spindb/api/internal/moderation"
	"spindb/api/internal/search"
)

// Gateway dispatches verified interactions to the moderation engine and the
// search service. It holds no item state of its own.
type Gateway struct {
	engine       *moderation.Engine
	search       *search.Service
	allowedRoles []string
}

// NewGateway wires the gateway. allowedRoles is the role allow-list from
// configuration; empty means every caller is authorized.
func NewGateway(engine *moderation.Engine, searchSvc *search.Service, allowedRoles []string) *Gateway {
	return &Gateway{engine: engine, search: searchSvc, allowedRoles: allowedRoles}
}

// CheckPermissions reports whether the caller may run moderation commands.
// With no allow-list configured every caller passes; otherwise at least one
// of the member's roles must appear in the list.
func (g *Gateway) CheckPermissions(in Interaction) bool {
	if len(g.allowedRoles) == 0 {
		return true
	}
	for _, role := range in.roles() {
		for _, allowed := range g.allowedRoles {
			if role == allowed {
				return true
			}
		}
	}
	return false
}

// HandleInteraction answers one verified interaction. Type 1 is the URL
// verification handshake and must be ponged without running any business
// logic.
func (g *Gateway) HandleInteraction(ctx context.Context, in Interaction) Response {
	switch in.Type {
	case InteractionPing:
		return Response{Type: ResponsePong}
	case InteractionCommand:
		return g.handleCommand(ctx, in)
	case InteractionComponent:
		return g.handleComponent(ctx, in)
	default:
		return ephemeral("Unsupported interaction type")
	}
}

func (g *Gateway) handleCommand(ctx context.Context, in Interaction) Response {
	if !g.CheckPermissions(in) {
		return ephemeral("You are not authorized to use this command")
	}

	switch in.Data.Name {
	case "equipment-search":
		return g.searchResponse(in.option("query"), search.ResultEquipment)
	case "player-search":
		return g.searchResponse(in.option("query"), search.ResultPlayer)
	case "approve":
		result := g.engine.ApproveReview(ctx, in.option("id"), in.actor().ID, false)
		return formatResult(result)
	case "reject":
		if g.engine.RejectReview(ctx, in.option("id"), in.actor().ID, in.option("reason")) {
			return channelMessage("Review rejected")
		}
		return ephemeral("Review not found or already processed")
	default:
		return ephemeral(fmt.Sprintf("Unknown command: %s", in.Data.Name))
	}
}

// handleComponent resolves a button press by its custom_id. The player-edit
// prefixes are supersets of the bare review prefixes and must be matched
// first.
func (g *Gateway) handleComponent(ctx context.Context, in Interaction) Response {
	if !g.CheckPermissions(in) {
		return ephemeral("You are not authorized to use this command")
	}

	customID := in.Data.CustomID
	actorID := in.actor().ID
	switch {
	case strings.HasPrefix(customID, "approve_player_edit_"):
		result := g.engine.ApprovePlayerEdit(ctx, strings.TrimPrefix(customID, "approve_player_edit_"), actorID)
		return formatResult(result)
	case strings.HasPrefix(customID, "reject_player_edit_"):
		if g.engine.RejectPlayerEdit(ctx, strings.TrimPrefix(customID, "reject_player_edit_"), actorID, "") {
			return channelMessage("Player edit rejected")
		}
		return ephemeral("Player edit not found or already processed")
	case strings.HasPrefix(customID, "approve_"):
		result := g.engine.ApproveReview(ctx, strings.TrimPrefix(customID, "approve_"), actorID, false)
		return formatResult(result)
	case strings.HasPrefix(customID, "reject_"):
		if g.engine.RejectReview(ctx, strings.TrimPrefix(customID, "reject_"), actorID, "") {
			return channelMessage("Review rejected")
		}
		return ephemeral("Review not found or already processed")
	default:
		return ephemeral("Unknown action")
	}
}

// HandlePrefixCommand serves the legacy text-command channel. Lines starting
// with !equipment or !player trigger the matching search; anything else
// yields no response.
func (g *Gateway) HandlePrefixCommand(content string) (Response, bool) {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "!equipment "):
		return g.searchResponse(strings.TrimPrefix(trimmed, "!equipment "), search.ResultEquipment), true
	case strings.HasPrefix(trimmed, "!player "):
		return g.searchResponse(strings.TrimPrefix(trimmed, "!player "), search.ResultPlayer), true
	default:
		return Response{}, false
	}
}

func (g *Gateway) searchResponse(query string, kind search.ResultType) Response {
	query = strings.TrimSpace(query)
	if query == "" {
		return ephemeral("Please provide a search query")
	}
	resp := g.search.Search(search.Query{Text: query, FilterType: kind, Limit: 5})
	if len(resp.Results) == 0 {
		return ephemeral(fmt.Sprintf("No results for %q", query))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", query)
	for _, r := range resp.Results {
		if r.Snippet != "" {
			fmt.Fprintf(&b, "- **%s** (%s)\n", r.Title, r.Snippet)
		} else {
			fmt.Fprintf(&b, "- **%s**\n", r.Title)
		}
	}
	return channelMessage(b.String())
}

// formatResult maps an engine outcome to a Discord response. Successful state
// changes are channel-visible; warnings and errors are shown only to the
// invoking moderator.
func formatResult(result moderation.Result) Response {
	if result.Success {
		return channelMessage(result.Message)
	}
	return ephemeral(result.Message)
}
