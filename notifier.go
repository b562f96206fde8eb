package main

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/levruta/auxparty/session"
	"github.com/levruta/auxparty/sys"
)

// ===========================
// Direct Messages
// ===========================

// sendDM delivers a message to a user's DM channel and returns it.
func sendDM(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) (*discord.Message, error) {
	dmChannel, err := BotClient.Rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	return BotClient.Rest.CreateMessage(dmChannel.ID(), msg, rest.WithCtx(ctx))
}

// deliverMenu refreshes the user's menu in place when a previous one is
// known, otherwise sends a fresh DM and remembers its handle.
func deliverMenu(ctx context.Context, userID snowflake.ID) error {
	if ref, ok := Engine.LastMessage(userID); ok {
		_, err := BotClient.Rest.UpdateMessage(ref.ChannelID, ref.MessageID, menuUpdate(ctx, userID), rest.WithCtx(ctx))
		if err == nil {
			return nil
		}
		// The message may have been deleted by the user; fall through to a
		// fresh send.
		Engine.ClearLastMessage(userID)
	}

	msg, err := sendDM(ctx, userID, menuCreate(ctx, userID))
	if err != nil {
		return err
	}
	Engine.SetLastMessage(userID, session.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID})
	return nil
}

// ===========================
// Session Notifier
// ===========================

// dmNotifier delivers session lifecycle notices over DMs. It implements
// session.Notifier.
type dmNotifier struct{}

func (dmNotifier) SessionEnded(ctx context.Context, userID snowflake.ID, admin bool, ref *session.MessageRef) {
	farewell := menuSessionOver
	if admin {
		farewell = menuSessionOverAdmin
	}

	if ref != nil {
		update := discord.NewMessageUpdate().
			WithIsComponentsV2(true).
			AddComponents(discord.NewTextDisplay(farewell))
		if _, err := BotClient.Rest.UpdateMessage(ref.ChannelID, ref.MessageID, update, rest.WithCtx(ctx)); err == nil {
			return
		}
	}

	msg := discord.NewMessageCreate().
		WithIsComponentsV2(true).
		AddComponents(discord.NewTextDisplay(farewell))
	if _, err := sendDM(ctx, userID, msg); err != nil {
		sys.LogSession(sys.MsgSessionFarewellFailed, userID, err)
	}
}

// ===========================
// Poll Ballots
// ===========================

// broadcastBallots DMs a vote prompt to every member with a say in the
// poll. Delivery failures are logged per recipient and never block the
// proposer's response.
func broadcastBallots(ctx context.Context, proposerName string, res session.AddResult, uri string) {
	text := fmt.Sprintf(ballotPrompt, proposerName, res.Label, res.Votes, res.Threshold)
	msg := discord.NewMessageCreate().
		WithIsComponentsV2(true).
		AddComponents(
			discord.NewTextDisplay(text),
			discord.NewActionRow(
				discord.NewButton(discord.ButtonStyleSuccess, "Add it", "vote:add:"+uri, "", 0),
				discord.NewButton(discord.ButtonStyleSecondary, "Pass", "vote:skip:"+uri, "", 0),
			),
		)

	for _, memberID := range res.Ballots {
		if _, err := sendDM(ctx, memberID, msg); err != nil {
			sys.LogPoll(sys.MsgPollBroadcastFail, memberID, err)
		}
	}
}

const (
	menuSessionOverAdmin = "The listening session has ended. See the history with `/session stats`. 🎧"
	ballotPrompt         = "🗳️ **%s** wants to queue **%s** (%d/%d votes)"
)
