package main

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/levruta/auxparty/lyrics"
	"github.com/levruta/auxparty/sys"
)

// ===========================
// Command Registration
// ===========================

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "lyrics",
		Description: "Get the lyrics for the track playing right now.",
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild, discord.InteractionContextTypeBotDM},
	}, handleLyrics)
}

// chunk size stays under the 4000-char text display limit with headroom
// for the title line.
const lyricsChunkSize = 3800

func handleLyrics(event *events.ApplicationCommandInteractionCreate) {
	ctx := AppContext
	user := event.User()

	if !Engine.IsMember(user.ID) {
		respondText(event, notMemberReply, true)
		return
	}
	if !Lyrics.Enabled() {
		respondText(event, lyricsDisabledReply, true)
		return
	}

	np, err := Engine.NowPlaying(ctx)
	if err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	if np == nil {
		respondText(event, lyricsNothingReply, true)
		return
	}

	artist := ""
	if len(np.Artists) > 0 {
		artist = np.Artists[0]
	}
	text, err := Lyrics.Find(ctx, artist, np.Name)
	if err != nil {
		if errors.Is(err, lyrics.ErrNotFound) {
			respondText(event, fmt.Sprintf(lyricsNotFoundReply, trackLine(np.Artists, np.Name)), true)
		} else {
			sys.LogLyrics("Lookup failed for %s - %s: %v", artist, np.Name, err)
			respondText(event, lyricsFailedReply, true)
		}
		return
	}

	chunks := lyrics.SplitChunks(text, lyricsChunkSize)
	for i, chunk := range chunks {
		body := chunk
		if i == 0 {
			body = fmt.Sprintf(lyricsTitleLine, trackLine(np.Artists, np.Name)) + "\n\n" + chunk
		}
		msg := discord.NewMessageCreate().
			WithIsComponentsV2(true).
			AddComponents(discord.NewTextDisplay(body))
		if _, err := sendDM(ctx, user.ID, msg); err != nil {
			respondText(event, menuDeliverFailReply, true)
			return
		}
	}
	respondText(event, lyricsSentReply, true)
}

// Reply copy
const (
	lyricsTitleLine     = "🎤 **%s**"
	lyricsDisabledReply = "Lyrics aren't set up on this bot."
	lyricsNothingReply  = "Nothing is playing right now."
	lyricsNotFoundReply = "No lyrics found for **%s**."
	lyricsFailedReply   = "Couldn't fetch lyrics right now. Try again later."
	lyricsSentReply     = "📬 Lyrics sent, check your DMs."
)
