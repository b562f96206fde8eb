package main

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/levruta/auxparty/session"
	"github.com/levruta/auxparty/spotify"
	"github.com/levruta/auxparty/sys"
)

// ===========================
// Command Registration
// ===========================

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "track",
		Description: "Queue music on the shared session.",
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild, discord.InteractionContextTypeBotDM},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Search for a track and add it to the queue",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "query",
						Description:  "Track name, artist, or both",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "playlist",
				Description: "Start playing an album, playlist or artist from a share link",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "link",
						Description: "An open.spotify.com album/playlist/artist link",
						Required:    true,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "add":
			handleTrackAdd(event, data.String("query"))
		case "playlist":
			handleTrackPlaylist(event, data.String("link"))
		}
	})

	RegisterAutocompleteHandler("track", handleTrackAutocomplete)
	RegisterComponentHandler("addtrack:", handleAddTrackButton)
	RegisterComponentHandler("vote:", handleVoteButton)
}

// ===========================
// Track Handlers
// ===========================

// handleTrackAdd queues the picked track, or shows search-result buttons
// when the query isn't a track URI yet (autocomplete skipped or typed by
// hand).
func handleTrackAdd(event *events.ApplicationCommandInteractionCreate, query string) {
	ctx := AppContext
	user := event.User()

	// Autocomplete hands back a URI; pasted bare IDs are normalized too.
	if spotify.IsTrackURI(query) || spotify.IsTrackID(query) {
		finishTrackAdd(event, spotify.TrackURI(query))
		return
	}

	results, err := Engine.Search(ctx, user.ID, query)
	if err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	if len(results) == 0 {
		respondText(event, fmt.Sprintf(searchEmptyReply, query), true)
		return
	}

	var body []discord.ContainerSubComponent
	body = append(body, discord.NewTextDisplay(fmt.Sprintf(searchHeader, query)))
	for i, t := range results {
		if i == searchButtonLimit {
			break
		}
		body = append(body, discord.NewActionRow(
			discord.NewButton(discord.ButtonStyleSecondary, truncateLabel(t.Label()), "addtrack:"+t.URI, "", 0),
		))
	}

	_ = event.CreateMessage(discord.NewMessageCreate().
		WithIsComponentsV2(true).
		AddComponents(discord.NewContainer(body...)).
		WithEphemeral(true))
}

// finishTrackAdd runs the actual queue-or-poll flow for a resolved URI.
func finishTrackAdd(event *events.ApplicationCommandInteractionCreate, uri string) {
	ctx := AppContext
	user := event.User()

	res, err := Engine.AddTrack(ctx, user.ID, uri)
	if err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	respondAddResult(event, user.Username, res, uri)
}

func respondAddResult(event *events.ApplicationCommandInteractionCreate, username string, res session.AddResult, uri string) {
	switch res.Outcome {
	case session.AddQueued:
		respondText(event, fmt.Sprintf(trackQueuedReply, res.Label), true)
	case session.AddPollOpened:
		respondText(event, fmt.Sprintf(pollOpenedReply, res.Label, res.Votes, res.Threshold), true)
		broadcastBallots(AppContext, username, res, uri)
	case session.AddAlreadyPolling:
		respondText(event, fmt.Sprintf(pollDuplicateReply, res.Label, res.Votes, res.Threshold), true)
	}
}

func handleTrackPlaylist(event *events.ApplicationCommandInteractionCreate, link string) {
	ctx := AppContext
	user := event.User()

	uri, err := spotify.ParseContextURL(link)
	if err != nil {
		respondText(event, playlistBadLinkReply, true)
		return
	}
	if err := Engine.StartContext(ctx, user.ID, uri); err != nil {
		respondText(event, userFacingError(err), true)
		return
	}
	respondText(event, playlistStartedReply, true)
}

// ===========================
// Autocomplete
// ===========================

// handleTrackAutocomplete surfaces live search results as the user types,
// with the track URI as the choice value so the add handler skips the
// second search.
func handleTrackAutocomplete(event *events.AutocompleteInteractionCreate) {
	data := event.Data
	focusedOpt := ""
	for _, opt := range data.Options {
		if opt.Focused {
			if opt.Value != nil {
				focusedOpt = strings.Trim(string(opt.Value), `"`)
			}
			break
		}
	}

	var choices []discord.AutocompleteChoice
	if len(focusedOpt) >= 2 {
		if results, err := Engine.Search(AppContext, event.User().ID, focusedOpt); err == nil {
			for _, t := range results {
				choices = append(choices, discord.AutocompleteChoiceString{
					Name:  truncateLabel(t.Label()),
					Value: t.URI,
				})
			}
		}
	}
	_ = event.AutocompleteResult(choices)
}

// ===========================
// Component Handlers
// ===========================

func handleAddTrackButton(event *events.ComponentInteractionCreate) {
	ctx := AppContext
	user := event.User()
	uri := strings.TrimPrefix(event.Data.CustomID(), "addtrack:")

	res, err := Engine.AddTrack(ctx, user.ID, uri)
	if err != nil {
		updateText(event, userFacingError(err))
		return
	}

	switch res.Outcome {
	case session.AddQueued:
		updateText(event, fmt.Sprintf(trackQueuedReply, res.Label))
	case session.AddPollOpened:
		updateText(event, fmt.Sprintf(pollOpenedReply, res.Label, res.Votes, res.Threshold))
		broadcastBallots(ctx, user.Username, res, uri)
	case session.AddAlreadyPolling:
		updateText(event, fmt.Sprintf(pollDuplicateReply, res.Label, res.Votes, res.Threshold))
	}
}

func handleVoteButton(event *events.ComponentInteractionCreate) {
	ctx := AppContext
	user := event.User()
	customID := event.Data.CustomID()

	switch {
	case strings.HasPrefix(customID, "vote:add:"):
		uri := strings.TrimPrefix(customID, "vote:add:")
		res, err := Engine.CastVote(ctx, user.ID, uri)
		if err != nil {
			sys.LogPoll(sys.MsgPollResolveFailed, uri, err)
			updateText(event, voteQueueFailReply)
			return
		}
		switch res.Status {
		case session.VoteResolved:
			updateText(event, fmt.Sprintf(voteResolvedReply, res.Label))
		case session.VoteAccepted:
			updateText(event, fmt.Sprintf(voteCountedReply, res.Label, res.Votes, res.Threshold))
		case session.VotePollNotFound:
			updateText(event, voteGoneReply)
		}
	case strings.HasPrefix(customID, "vote:skip:"):
		// An admin's Pass vetoes the poll; a member's just acknowledges.
		if Engine.IsAdmin(user.ID) {
			uri := strings.TrimPrefix(customID, "vote:skip:")
			Engine.DismissPoll(uri)
			updateText(event, voteVetoedReply)
			return
		}
		updateText(event, voteSkippedReply)
	}
}

// ===========================
// Helpers
// ===========================

const searchButtonLimit = 10

// truncateLabel keeps button labels inside Discord's 80-char limit.
func truncateLabel(label string) string {
	if len(label) <= 80 {
		return label
	}
	return label[:77] + "..."
}

// Reply copy
const (
	searchHeader         = "🔎 Results for **%s** — pick one:"
	searchEmptyReply     = "No tracks found for **%s**."
	trackQueuedReply     = "✅ **%s** is in the queue."
	pollOpenedReply      = "🗳️ Vote opened for **%s** (%d/%d). Other members got a ballot."
	pollDuplicateReply   = "A vote for **%s** is already running (%d/%d)."
	playlistBadLinkReply = "That doesn't look like an open.spotify.com album, playlist or artist link."
	playlistStartedReply = "▶️ Started playing that context."
	voteResolvedReply    = "✅ **%s** reached the threshold and is in the queue!"
	voteCountedReply     = "🗳️ Vote counted for **%s** (%d/%d)."
	voteGoneReply        = "That vote already closed."
	voteQueueFailReply   = "Your vote counted, but queueing failed. The next vote will retry."
	voteSkippedReply     = "Skipped. The vote stays open for others."
	voteVetoedReply      = "🚫 Vote closed without queueing."
)
