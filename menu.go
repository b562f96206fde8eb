package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/levruta/auxparty/session"
)

// ===========================
// Component Registration
// ===========================

func init() {
	RegisterComponentHandler("menu:", handleMenuButton)
}

// handleMenuButton services the playback controls on the menu and
// re-renders it in place afterwards.
func handleMenuButton(event *events.ComponentInteractionCreate) {
	ctx := AppContext
	userID := event.User().ID
	action := strings.TrimPrefix(event.Data.CustomID(), "menu:")

	var err error
	switch action {
	case "previous":
		_, err = Engine.Previous(ctx, userID)
	case "next":
		_, err = Engine.Next(ctx, userID)
	case "playpause":
		err = Engine.TogglePlayPause(ctx, userID)
	case "volumeup":
		_, err = Engine.VolumeUp(ctx, userID)
	case "volumedown":
		_, err = Engine.VolumeDown(ctx, userID)
	case "mute":
		err = Engine.MuteToggle(ctx, userID)
	case "devices":
		showDeviceMenu(event)
		return
	case "back":
		// fall through to the refresh below
	default:
		_ = event.DeferUpdateMessage()
		return
	}

	if err != nil {
		updateText(event, userFacingError(err))
		return
	}
	_ = event.UpdateMessage(menuUpdate(ctx, userID))
}

func showDeviceMenu(event *events.ComponentInteractionCreate) {
	userID := event.User().ID
	devices, err := Engine.Devices(AppContext, userID)
	if err != nil {
		updateText(event, userFacingError(err))
		return
	}

	body := buildDeviceRows(devices)
	body = append(body, discord.NewActionRow(
		discord.NewButton(discord.ButtonStyleSecondary, "⬅️ Back", "menu:back", "", 0),
	))
	_ = event.UpdateMessage(discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		AddComponents(discord.NewContainer(body...)))
}

// buildDeviceRows renders one button per playback device, the active one
// highlighted and disabled.
func buildDeviceRows(devices []session.Device) []discord.ContainerSubComponent {
	body := []discord.ContainerSubComponent{discord.NewTextDisplay(devicesHeader)}
	if len(devices) == 0 {
		return append(body, discord.NewTextDisplay(devicesNoneReply))
	}
	for i := 0; i < len(devices); i += 5 {
		var row []discord.InteractiveComponent
		for _, d := range devices[i:min(i+5, len(devices))] {
			label := fmt.Sprintf("%s (%s)", d.Name, d.Type)
			btn := discord.NewButton(discord.ButtonStyleSecondary, truncateLabel(label), "device:"+d.ID, "", 0)
			if d.Active {
				btn = discord.NewButton(discord.ButtonStyleSuccess, truncateLabel("▶ "+label), "device:"+d.ID, "", 0).WithDisabled(true)
			}
			row = append(row, btn)
		}
		body = append(body, discord.NewActionRow(row...))
	}
	return body
}

// ===========================
// Menu Rendering
// ===========================

// buildMenuComponents renders the per-user control menu: now-playing
// header, the attributed queue, and the control buttons the user is
// allowed to press right now.
func buildMenuComponents(ctx context.Context, userID snowflake.ID) []discord.LayoutComponent {
	snap := Engine.Snapshot()
	if !snap.Active {
		return []discord.LayoutComponent{discord.NewTextDisplay(menuSessionOver)}
	}

	var header strings.Builder
	header.WriteString(fmt.Sprintf(menuHeader, snap.MemberCount, snap.Mode))

	np, err := Engine.NowPlaying(ctx)
	switch {
	case err != nil:
		header.WriteString(menuPlayerUnavailable)
	case np == nil:
		header.WriteString(menuNothingPlaying)
	default:
		state := "▶️"
		if !np.Playing {
			state = "⏸️"
		}
		header.WriteString(fmt.Sprintf(menuNowPlaying, state, trackLine(np.Artists, np.Name)))
	}

	var body []discord.ContainerSubComponent
	body = append(body, discord.NewTextDisplay(renderQueue(ctx)))
	body = append(body, discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true))

	canControl := Engine.CanControl(userID)
	playbackRow := discord.NewActionRow(
		discord.NewButton(discord.ButtonStyleSecondary, "⏮️", "menu:previous", "", 0).WithDisabled(!canControl),
		discord.NewButton(discord.ButtonStylePrimary, "⏯️", "menu:playpause", "", 0).WithDisabled(!canControl),
		discord.NewButton(discord.ButtonStyleSecondary, "⏭️", "menu:next", "", 0).WithDisabled(!canControl),
	)
	volumeRow := discord.NewActionRow(
		discord.NewButton(discord.ButtonStyleSecondary, "🔉", "menu:volumedown", "", 0).WithDisabled(!canControl),
		discord.NewButton(discord.ButtonStyleSecondary, "🔇", "menu:mute", "", 0).WithDisabled(!canControl),
		discord.NewButton(discord.ButtonStyleSecondary, "🔊", "menu:volumeup", "", 0).WithDisabled(!canControl),
	)
	body = append(body, playbackRow, volumeRow)

	if Engine.IsAdmin(userID) {
		modeLabel := "Restrict queue"
		if snap.Mode == session.ModeRestricted {
			modeLabel = "Open queue"
		}
		body = append(body,
			discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
			discord.NewActionRow(
				discord.NewButton(discord.ButtonStyleSecondary, modeLabel, "mode:toggle", "", 0),
				discord.NewButton(discord.ButtonStyleSecondary, "Devices", "menu:devices", "", 0),
				discord.NewButton(discord.ButtonStyleDanger, "End session", "endsession:confirm", "", 0),
			),
		)
	}

	return []discord.LayoutComponent{
		discord.NewTextDisplay(header.String()),
		discord.NewContainer(body...),
	}
}

// renderQueue formats the upcoming tracks with their requesters.
func renderQueue(ctx context.Context) string {
	queue, err := Engine.AttributedQueue(ctx)
	if err != nil || len(queue) == 0 {
		return menuQueueEmpty
	}

	var sb strings.Builder
	sb.WriteString(menuQueueHeader)
	for i, entry := range queue {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, entry.Track.Label()))
		if entry.Attributed {
			sb.WriteString(fmt.Sprintf(" — <@%s>", entry.RequestedBy))
		}
	}
	return sb.String()
}

func trackLine(artists []string, name string) string {
	if len(artists) == 0 {
		return name
	}
	return artists[0] + " - " + name
}

func menuCreate(ctx context.Context, userID snowflake.ID) discord.MessageCreate {
	return discord.NewMessageCreate().
		WithIsComponentsV2(true).
		AddComponents(buildMenuComponents(ctx, userID)...)
}

func menuUpdate(ctx context.Context, userID snowflake.ID) discord.MessageUpdate {
	return discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		AddComponents(buildMenuComponents(ctx, userID)...)
}

// Menu copy
const (
	menuHeader            = "🎚️ **Aux Party** — %d member(s), %s mode\n"
	menuNowPlaying        = "%s %s"
	menuNothingPlaying    = "Nothing is playing right now."
	menuPlayerUnavailable = "⚠️ Player unreachable, controls may lag."
	menuQueueEmpty        = "The queue is empty. Add something with `/track add`."
	menuQueueHeader       = "**Up next:**"
	menuSessionOver       = "The listening session has ended. Thanks for tuning in! 🎧"
)
