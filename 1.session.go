package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"

	"github.com/levruta/auxparty/session"
	"github.com/levruta/auxparty/sys"
)

// ===========================
// Command Registration
// ===========================

func init() {
	adminPerm := discord.PermissionAdministrator
	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "session",
		Description:              "Manage the shared listening session.",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts:                 []discord.InteractionContextType{discord.InteractionContextTypeGuild, discord.InteractionContextTypeBotDM},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "start",
				Description: "Start a session and get a join token",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "end",
				Description: "End the session for everyone",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "mode",
				Description: "Switch who may control playback and queue tracks",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "access",
						Description: "Access mode",
						Required:    true,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Share — everyone controls", Value: "share"},
							{Name: "Restricted — admins control, members vote", Value: "restricted"},
						},
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "threshold",
				Description: "Set how many votes queue a track in restricted mode",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "votes",
						Description: "Votes required",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "promote",
				Description: "Give a member admin rights (persists across sessions)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The member to promote",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "demote",
				Description: "Revoke a member's admin rights",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "The admin to demote",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "devices",
				Description: "List playback devices and switch between them",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stats",
				Description: "Show what has been queued over time",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "start":
			handleSessionStart(event)
		case "end":
			handleSessionEnd(event)
		case "mode":
			handleSessionMode(event, data.String("access"))
		case "threshold":
			handleSessionThreshold(event, data.Int("votes"))
		case "promote":
			handleSessionPromote(event, data.User("user"))
		case "demote":
			handleSessionDemote(event, data.User("user"))
		case "devices":
			handleSessionDevices(event)
		case "stats":
			handleSessionStats(event)
		}
	})

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "join",
		Description: "Join the listening session with a token.",
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild, discord.InteractionContextTypeBotDM},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "token",
				Description: "The token the session admin shared with you",
				Required:    true,
			},
		},
	}, handleJoin)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "leave",
		Description: "Leave the listening session.",
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild, discord.InteractionContextTypeBotDM},
	}, handleLeave)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "menu",
		Description: "Get your session control menu.",
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild, discord.InteractionContextTypeBotDM},
	}, handleMenu)

	RegisterComponentHandler("mode:", handleModeButton)
	RegisterComponentHandler("device:", handleDeviceButton)
	RegisterComponentHandler("endsession:", handleEndSessionButton)
}

// ===========================
// Session Handlers
// ===========================

func handleSessionStart(event *events.ApplicationCommandInteractionCreate) {
	ctx := AppContext
	user := event.User()

	token, err := Engine.StartSession(ctx)
	if err != nil {
		respondText(event, userFacingError(err), true)
		return
	}

	// The starter becomes a persisted admin; the list survives restarts.
	Engine.PromoteAdmin(user.ID, user.Username)
	if err := sys.AddAdmin(ctx, user.ID, user.Username); err != nil {
		sys.LogError("Failed to persist admin %s: %v", user.ID, err)
	}
	sys.LogSession(sys.MsgSessionStarted, user.Username, user.ID)

	respondText(event, fmt.Sprintf(sessionStartedReply, token, token), true)
	_ = deliverMenu(ctx, user.ID)
}

func handleSessionEnd(event *events.ApplicationCommandInteractionCreate) {
	if !requireAdmin(event) {
		return
	}
	if err := Engine.EndSession(AppContext); err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	respondText(event, sessionEndedReply, true)
}

func handleSessionMode(event *events.ApplicationCommandInteractionCreate, access string) {
	if !requireAdmin(event) {
		return
	}
	mode := session.ModeShare
	if access == "restricted" {
		mode = session.ModeRestricted
	}
	if err := Engine.SetMode(mode); err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	respondText(event, fmt.Sprintf(sessionModeReply, mode), true)
}

func handleSessionThreshold(event *events.ApplicationCommandInteractionCreate, votes int) {
	if !requireAdmin(event) {
		return
	}
	if err := Engine.SetThreshold(votes); err != nil {
		respondText(event, thresholdInvalidReply, true)
		return
	}
	respondText(event, fmt.Sprintf(thresholdReply, votes), true)
}

func handleSessionPromote(event *events.ApplicationCommandInteractionCreate, target discord.User) {
	if !requireAdmin(event) {
		return
	}
	if !Engine.IsMember(target.ID) {
		respondText(event, promoteNotMemberReply, true)
		return
	}
	Engine.PromoteAdmin(target.ID, target.Username)
	if err := sys.AddAdmin(AppContext, target.ID, target.Username); err != nil {
		sys.LogError("Failed to persist admin %s: %v", target.ID, err)
	}
	respondText(event, fmt.Sprintf(promotedReply, target.ID), true)
}

func handleSessionDemote(event *events.ApplicationCommandInteractionCreate, target discord.User) {
	if !requireAdmin(event) {
		return
	}
	Engine.DemoteAdmin(target.ID)
	if err := sys.RemoveAdmin(AppContext, target.ID); err != nil {
		sys.LogError("Failed to remove persisted admin %s: %v", target.ID, err)
	}
	respondText(event, fmt.Sprintf(demotedReply, target.ID), true)
}

func handleSessionDevices(event *events.ApplicationCommandInteractionCreate) {
	devices, err := Engine.Devices(AppContext, event.User().ID)
	if err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	_ = event.CreateMessage(discord.NewMessageCreate().
		WithIsComponentsV2(true).
		AddComponents(discord.NewContainer(buildDeviceRows(devices)...)).
		WithEphemeral(true))
}

func handleSessionStats(event *events.ApplicationCommandInteractionCreate) {
	ctx := AppContext
	total, err := sys.GetTrackHistoryCount(ctx)
	if err != nil {
		respondText(event, userFacingError(err), true)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(statsHeader, total))
	if recent, err := sys.GetRecentTracks(ctx, 10); err == nil && len(recent) > 0 {
		sb.WriteString(statsRecentHeader)
		for _, entry := range recent {
			sb.WriteString(fmt.Sprintf("\n• %s — <@%s>", entry.Label, entry.RequestedBy))
		}
	}
	respondText(event, sb.String(), true)
}

// ===========================
// Join & Menu Handlers
// ===========================

func handleJoin(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	user := event.User()

	if err := Engine.JoinSession(user.ID, user.Username, data.String("token")); err != nil {
		respondText(event, userFacingError(err), true)
		return
	}

	respondText(event, joinedReply, true)
	_ = deliverMenu(AppContext, user.ID)
}

func handleLeave(event *events.ApplicationCommandInteractionCreate) {
	user := event.User()
	if !Engine.IsMember(user.ID) {
		respondText(event, notMemberReply, true)
		return
	}
	Engine.RemoveMember(user.ID)
	respondText(event, leftReply, true)
}

func handleMenu(event *events.ApplicationCommandInteractionCreate) {
	user := event.User()
	if !Engine.IsMember(user.ID) {
		respondText(event, notMemberReply, true)
		return
	}
	if err := deliverMenu(AppContext, user.ID); err != nil {
		sys.LogMenu(sys.MsgMenuRefreshFail, user.ID, err)
		respondText(event, menuDeliverFailReply, true)
		return
	}
	respondText(event, menuSentReply, true)
}

// ===========================
// Component Handlers
// ===========================

func handleModeButton(event *events.ComponentInteractionCreate) {
	userID := event.User().ID
	if !Engine.IsAdmin(userID) {
		_ = event.DeferUpdateMessage()
		return
	}
	next := session.ModeRestricted
	if Engine.Mode() == session.ModeRestricted {
		next = session.ModeShare
	}
	_ = Engine.SetMode(next)
	_ = event.UpdateMessage(menuUpdate(AppContext, userID))
}

func handleDeviceButton(event *events.ComponentInteractionCreate) {
	userID := event.User().ID
	deviceID := strings.TrimPrefix(event.Data.CustomID(), "device:")

	if err := Engine.TransferTo(AppContext, userID, deviceID); err != nil {
		updateText(event, userFacingError(err))
		return
	}
	updateText(event, deviceSwitchedReply)
}

func handleEndSessionButton(event *events.ComponentInteractionCreate) {
	userID := event.User().ID
	if !Engine.IsAdmin(userID) {
		_ = event.DeferUpdateMessage()
		return
	}

	action := strings.TrimPrefix(event.Data.CustomID(), "endsession:")
	switch action {
	case "confirm":
		_ = event.UpdateMessage(discord.NewMessageUpdate().
			WithIsComponentsV2(true).
			AddComponents(
				discord.NewTextDisplay(endConfirmPrompt),
				discord.NewActionRow(
					discord.NewButton(discord.ButtonStyleDanger, "End it", "endsession:yes", "", 0),
					discord.NewButton(discord.ButtonStyleSecondary, "Keep playing", "endsession:no", "", 0),
				),
			))
	case "yes":
		// EndSession rewrites this menu into the farewell via the notifier,
		// so only failures need a response here.
		if err := Engine.EndSession(AppContext); err != nil {
			updateText(event, userFacingError(err))
		} else {
			_ = event.DeferUpdateMessage()
		}
	case "no":
		_ = event.UpdateMessage(menuUpdate(AppContext, userID))
	}
}

// ===========================
// Shared Helpers
// ===========================

func requireAdmin(event *events.ApplicationCommandInteractionCreate) bool {
	if Engine.IsAdmin(event.User().ID) {
		return true
	}
	respondText(event, notAdminReply, true)
	return false
}

// userFacingError translates engine and provider errors into the copy
// members see.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidToken):
		return "That token doesn't match any active session."
	case errors.Is(err, session.ErrNoSession):
		return "There's no session running right now."
	case errors.Is(err, session.ErrNoActiveDevice):
		return "No active Spotify device found. Start playback somewhere first."
	case errors.Is(err, session.ErrPremiumRequired):
		return "The session account needs Spotify Premium for that."
	case errors.Is(err, session.ErrConnectivity):
		return "Spotify isn't responding right now. Try again in a moment."
	case errors.Is(err, session.ErrNotMember):
		return "You're not in this session. Ask the host for the token and use `/join`."
	case errors.Is(err, session.ErrNotAllowed):
		return "The session is in restricted mode; only admins can do that."
	default:
		return "Something went wrong: " + err.Error()
	}
}

// Reply copy
const (
	sessionStartedReply   = "🎛️ Session started! Share this token so others can join:\n`%s`\nThey join with `/join token:%s`."
	sessionEndedReply     = "Session ended. Everyone has been notified."
	sessionModeReply      = "Access mode is now **%s**."
	thresholdReply        = "Tracks now need **%d** vote(s) in restricted mode."
	thresholdInvalidReply = "The threshold can't be negative."
	promotedReply         = "<@%s> is now a session admin."
	promoteNotMemberReply = "They need to join the session before you can promote them."
	demotedReply          = "<@%s> is no longer a session admin."
	leftReply             = "You left the session. Come back any time with `/join`."
	devicesHeader         = "**Playback devices**"
	devicesNoneReply      = "No devices found. Open Spotify somewhere first."
	deviceSwitchedReply   = "✅ Playback moved."
	statsHeader           = "📊 **%d** track(s) queued through sessions so far."
	statsRecentHeader     = "\n\n**Recently queued:**"
	joinedReply           = "🎧 You're in! Check your DMs for the control menu."
	notMemberReply        = "You're not in a session. Ask the host for the token and use `/join`."
	notAdminReply         = "Only session admins can do that."
	menuSentReply         = "📬 Menu sent, check your DMs."
	menuDeliverFailReply  = "Couldn't DM you. Allow direct messages from server members and retry."
	endConfirmPrompt      = "⚠️ End the session for everyone?"
)
