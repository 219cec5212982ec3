package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/varrock/clogboard/internal/adapters/store"
	"github.com/varrock/clogboard/internal/app"
	"github.com/varrock/clogboard/internal/domain/score"
	"github.com/varrock/clogboard/pkg/logger"
)

// Per-command deadlines. A resync fans out over every tracked player and
// can legitimately take minutes under rate limiting.
const (
	commandTimeout = 30 * time.Second
	resyncTimeout  = 10 * time.Minute
)

// Syncer runs passes and display refreshes on behalf of commands.
type Syncer interface {
	Sync(ctx context.Context, scope string, manual bool) error
	RefreshDisplay(ctx context.Context, scope string) error
}

// Store is the persistence surface the command handlers need.
type Store interface {
	Link(ctx context.Context, a store.Account) error
	Unlink(ctx context.Context, scope, ownerID, player string) error
	UpdateAccount(ctx context.Context, scope, ownerID, player, category, decoration string) error
	AccountsByOwner(ctx context.Context, scope, ownerID string) ([]store.Account, error)
	Owner(ctx context.Context, scope, player string) (string, error)
	RecordFor(ctx context.Context, scope, player string) (store.Record, error)
	SetScore(ctx context.Context, scope, player string, total score.Total) error
	DeleteRecord(ctx context.Context, scope, player string) error
	SetChannel(ctx context.Context, scope, channelID string) error
	ClearMessageID(ctx context.Context, scope string) error
}

// Commands registers and handles the bot's slash commands.
type Commands struct {
	session *discordgo.Session
	store   Store
	syncer  Syncer

	adminRoleID string
	adminUserID string
	log         logger.Logger
}

// NewCommands creates the command handler set.
func NewCommands(session *discordgo.Session, st Store, syncer Syncer, opts ...CommandsOption) *Commands {
	c := &Commands{session: session, store: st, syncer: syncer}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.Get().Named("commands")
	}
	return c
}

var categoryChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "Main", Value: "Main"},
	{Name: "Ironman", Value: "Iron"},
	{Name: "Hardcore Ironman", Value: "HCIM"},
	{Name: "Ultimate Ironman", Value: "UIM"},
	{Name: "Group Ironman", Value: "GIM"},
}

func definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "setup",
			Description: "Choose the channel the leaderboard is posted in (admin)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel for the leaderboard message",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        "resync",
			Description: "Refetch every tracked player and refresh the board (admin)",
		},
		{
			Name:        "override",
			Description: "Set a hidden player's collection log total by hand (admin)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "score",
					Description: "Collection log total (1-499)",
					Required:    true,
				},
			},
		},
		{
			Name:        "link",
			Description: "Add a player account to the leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player name as it appears on the hiscores",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "category",
					Description: "Account type",
					Choices:     categoryChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "decoration",
					Description: "Emoji or text shown after the player name",
				},
			},
		},
		{
			Name:        "unlink",
			Description: "Remove one of your linked players",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player name",
					Required:    true,
				},
			},
		},
		{
			Name:        "update",
			Description: "Change a linked player's account type or decoration",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "category",
					Description: "Account type",
					Choices:     categoryChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "decoration",
					Description: "Emoji or text shown after the player name",
				},
			},
		},
		{
			Name:        "list",
			Description: "Show the players you have linked",
		},
		{
			Name:        "whois",
			Description: "Look up who linked a player",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player name",
					Required:    true,
				},
			},
		},
	}
}

// Register installs the interaction handler and creates the commands.
// Call after the session is open.
func (c *Commands) Register() error {
	c.session.AddHandler(c.dispatch)

	appID := c.session.State.User.ID
	for _, def := range definitions() {
		if _, err := c.session.ApplicationCommandCreate(appID, "", def); err != nil {
			return fmt.Errorf("register command %s: %w", def.Name, err)
		}
	}
	return nil
}

func (c *Commands) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if i.GuildID == "" {
		c.respond(ctx, i, "This command only works inside a server.")
		return
	}

	name := i.ApplicationCommandData().Name
	c.log.Info(ctx, "command received",
		logger.String("command", name),
		logger.String("scope", i.GuildID),
		logger.String("user", userID(i)),
	)

	switch name {
	case "setup":
		c.handleSetup(ctx, i)
	case "resync":
		c.handleResync(i)
	case "override":
		c.handleOverride(ctx, i)
	case "link":
		c.handleLink(i)
	case "unlink":
		c.handleUnlink(ctx, i)
	case "update":
		c.handleUpdate(ctx, i)
	case "list":
		c.handleList(ctx, i)
	case "whois":
		c.handleWhois(ctx, i)
	default:
		c.respond(ctx, i, "Unknown command.")
	}
}

func (c *Commands) handleSetup(ctx context.Context, i *discordgo.InteractionCreate) {
	if !c.isAdmin(i) {
		c.respond(ctx, i, "You need admin rights for that.")
		return
	}

	opts := optionMap(i)
	channel := opts["channel"].ChannelValue(nil)

	if err := c.store.SetChannel(ctx, i.GuildID, channel.ID); err != nil {
		c.fail(ctx, i, "setup", err)
		return
	}
	// Forget the old message so the next publish lands in the new channel.
	if err := c.store.ClearMessageID(ctx, i.GuildID); err != nil {
		c.fail(ctx, i, "setup", err)
		return
	}

	if err := c.syncer.RefreshDisplay(ctx, i.GuildID); err != nil && !errors.Is(err, app.ErrNoChannel) {
		c.log.Warn(ctx, "initial publish failed", logger.Error(err))
	}
	c.respond(ctx, i, fmt.Sprintf("Leaderboard channel set to <#%s>.", channel.ID))
}

func (c *Commands) handleResync(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	if !c.isAdmin(i) {
		c.respond(ctx, i, "You need admin rights for that.")
		return
	}
	if !c.acknowledge(ctx, i) {
		return
	}

	err := c.syncer.Sync(ctx, i.GuildID, true)
	switch {
	case errors.Is(err, app.ErrSyncInProgress):
		c.followUp(ctx, i, "A sync is already running, hang tight.")
	case err != nil:
		c.log.Error(ctx, "manual resync failed", logger.Error(err))
		c.followUp(ctx, i, "Resync failed, check the logs.")
	default:
		c.followUp(ctx, i, "Leaderboard resynced. ✅")
	}
}

func (c *Commands) handleOverride(ctx context.Context, i *discordgo.InteractionCreate) {
	if !c.isAdmin(i) {
		c.respond(ctx, i, "You need admin rights for that.")
		return
	}

	opts := optionMap(i)
	player := strings.TrimSpace(opts["player"].StringValue())
	value := int(opts["score"].IntValue())

	// Overrides exist for players the hiscores hide, so only totals
	// under the visibility floor are accepted.
	if value < 1 || value >= score.VisibilityFloor {
		c.respond(ctx, i, fmt.Sprintf("Override must be between 1 and %d.", score.VisibilityFloor-1))
		return
	}

	rec, err := c.store.RecordFor(ctx, i.GuildID, player)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.respond(ctx, i, fmt.Sprintf("**%s** is not on the leaderboard.", player))
		return
	case err != nil:
		c.fail(ctx, i, "override", err)
		return
	}
	if v, known := rec.Total.Value(); known && v >= score.VisibilityFloor {
		c.respond(ctx, i, fmt.Sprintf("**%s** is publicly ranked with %d entries; nothing to override.", player, v))
		return
	}

	if err := c.store.SetScore(ctx, i.GuildID, player, score.Known(value)); err != nil {
		c.fail(ctx, i, "override", err)
		return
	}
	if err := c.syncer.RefreshDisplay(ctx, i.GuildID); err != nil && !errors.Is(err, app.ErrNoChannel) {
		c.log.Warn(ctx, "refresh after override failed", logger.Error(err))
	}
	c.respond(ctx, i, fmt.Sprintf("Set **%s** to %d.", player, value))
}

func (c *Commands) handleLink(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	opts := optionMap(i)
	account := store.Account{
		Scope:   i.GuildID,
		OwnerID: userID(i),
		Player:  strings.TrimSpace(opts["player"].StringValue()),
	}
	if opt, ok := opts["category"]; ok {
		account.Category = opt.StringValue()
	}
	if opt, ok := opts["decoration"]; ok {
		account.Decoration = opt.StringValue()
	}

	if account.Player == "" {
		c.respond(ctx, i, "Player name cannot be empty.")
		return
	}
	if !c.acknowledge(ctx, i) {
		return
	}

	if err := c.store.Link(ctx, account); err != nil {
		c.log.Error(ctx, "link failed", logger.Error(err))
		c.followUp(ctx, i, "Linking failed, check the logs.")
		return
	}

	// Pull the new player onto the board right away.
	if err := c.syncer.Sync(ctx, i.GuildID, true); err != nil && !errors.Is(err, app.ErrSyncInProgress) {
		c.log.Warn(ctx, "sync after link failed", logger.Error(err))
	}
	c.followUp(ctx, i, fmt.Sprintf("Linked **%s**. 🎉", account.Player))
}

func (c *Commands) handleUnlink(ctx context.Context, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	player := strings.TrimSpace(opts["player"].StringValue())

	err := c.store.Unlink(ctx, i.GuildID, userID(i), player)
	switch {
	case errors.Is(err, store.ErrNotLinked):
		c.respond(ctx, i, fmt.Sprintf("You have no linked player named **%s**.", player))
		return
	case err != nil:
		c.fail(ctx, i, "unlink", err)
		return
	}

	// Drop the leaderboard row once no one links the player anymore.
	if _, err := c.store.Owner(ctx, i.GuildID, player); errors.Is(err, store.ErrNotLinked) {
		if err := c.store.DeleteRecord(ctx, i.GuildID, player); err != nil {
			c.log.Warn(ctx, "delete record after unlink failed", logger.Error(err))
		}
	}

	if err := c.syncer.RefreshDisplay(ctx, i.GuildID); err != nil && !errors.Is(err, app.ErrNoChannel) {
		c.log.Warn(ctx, "refresh after unlink failed", logger.Error(err))
	}
	c.respond(ctx, i, fmt.Sprintf("Unlinked **%s**.", player))
}

func (c *Commands) handleUpdate(ctx context.Context, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	player := strings.TrimSpace(opts["player"].StringValue())

	var category, decoration string
	if opt, ok := opts["category"]; ok {
		category = opt.StringValue()
	}
	if opt, ok := opts["decoration"]; ok {
		decoration = opt.StringValue()
	}
	if category == "" && decoration == "" {
		c.respond(ctx, i, "Give a category or a decoration to change.")
		return
	}

	err := c.store.UpdateAccount(ctx, i.GuildID, userID(i), player, category, decoration)
	switch {
	case errors.Is(err, store.ErrNotLinked):
		c.respond(ctx, i, fmt.Sprintf("You have no linked player named **%s**.", player))
		return
	case err != nil:
		c.fail(ctx, i, "update", err)
		return
	}

	if err := c.syncer.RefreshDisplay(ctx, i.GuildID); err != nil && !errors.Is(err, app.ErrNoChannel) {
		c.log.Warn(ctx, "refresh after update failed", logger.Error(err))
	}
	c.respond(ctx, i, fmt.Sprintf("Updated **%s**.", player))
}

func (c *Commands) handleList(ctx context.Context, i *discordgo.InteractionCreate) {
	accounts, err := c.store.AccountsByOwner(ctx, i.GuildID, userID(i))
	if err != nil {
		c.fail(ctx, i, "list", err)
		return
	}
	if len(accounts) == 0 {
		c.respond(ctx, i, "You have no linked players. Use `/link` to add one.")
		return
	}

	var b strings.Builder
	b.WriteString("Your linked players:\n")
	for _, a := range accounts {
		b.WriteString("• **")
		b.WriteString(a.Player)
		b.WriteString("**")
		if a.Category != "" {
			b.WriteString(" (")
			b.WriteString(a.Category)
			b.WriteString(")")
		}
		if a.Decoration != "" {
			b.WriteByte(' ')
			b.WriteString(a.Decoration)
		}
		b.WriteByte('\n')
	}
	c.respond(ctx, i, b.String())
}

func (c *Commands) handleWhois(ctx context.Context, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	player := strings.TrimSpace(opts["player"].StringValue())

	owner, err := c.store.Owner(ctx, i.GuildID, player)
	switch {
	case errors.Is(err, store.ErrNotLinked):
		c.respond(ctx, i, fmt.Sprintf("Nobody has linked **%s**.", player))
	case err != nil:
		c.fail(ctx, i, "whois", err)
	default:
		c.respond(ctx, i, fmt.Sprintf("**%s** was linked by <@%s>.", player, owner))
	}
}

// isAdmin grants access to guild administrators, the configured admin
// role, and the configured admin user.
func (c *Commands) isAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if c.adminRoleID != "" {
		for _, role := range i.Member.Roles {
			if role == c.adminRoleID {
				return true
			}
		}
	}
	return c.adminUserID != "" && userID(i) == c.adminUserID
}

func (c *Commands) respond(ctx context.Context, i *discordgo.InteractionCreate, content string) {
	err := c.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		c.log.Warn(ctx, "interaction respond failed", logger.Error(err))
	}
}

// acknowledge defers the reply so slow work can finish past Discord's
// three second interaction deadline.
func (c *Commands) acknowledge(ctx context.Context, i *discordgo.InteractionCreate) bool {
	err := c.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		c.log.Warn(ctx, "interaction defer failed", logger.Error(err))
		return false
	}
	return true
}

func (c *Commands) followUp(ctx context.Context, i *discordgo.InteractionCreate, content string) {
	_, err := c.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}, discordgo.WithContext(ctx))
	if err != nil {
		c.log.Warn(ctx, "interaction follow-up failed", logger.Error(err))
	}
}

func (c *Commands) fail(ctx context.Context, i *discordgo.InteractionCreate, command string, err error) {
	c.log.Error(ctx, "command failed", logger.String("command", command), logger.Error(err))
	c.respond(ctx, i, "Something went wrong, check the logs.")
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}
	return opts
}

func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
