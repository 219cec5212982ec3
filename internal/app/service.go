// Package app reconciles tracked players against the hiscore source and
// publishes the ranked leaderboard per scope.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varrock/clogboard/internal/adapters/store"
	"github.com/varrock/clogboard/internal/domain/rank"
	"github.com/varrock/clogboard/internal/domain/score"
	"github.com/varrock/clogboard/pkg/logger"
	"github.com/varrock/clogboard/pkg/metrics"
)

// Store is the persistence surface the service needs.
type Store interface {
	Scopes(ctx context.Context) ([]string, error)
	Players(ctx context.Context, scope string) ([]string, error)
	Snapshot(ctx context.Context, scope string) (map[string]store.Record, error)
	SaveSnapshot(ctx context.Context, scope string, records []store.Record) error
	Accounts(ctx context.Context, scope string) (map[string]store.Account, error)
	DisplayState(ctx context.Context, scope string) (store.DisplayState, error)
	SetMessageID(ctx context.Context, scope, messageID string) error
	ClearMessageID(ctx context.Context, scope string) error
}

// Fetcher resolves one player's collection log result.
type Fetcher interface {
	GetOrFetch(ctx context.Context, player string, bypass bool) (score.Result, error)
}

// Messenger publishes embeds to a channel. Implementations map transport
// failures onto ErrArtifactNotFound and ErrForbidden.
type Messenger interface {
	SendEmbed(ctx context.Context, channelID string, embed *Embed) (string, error)
	EditEmbed(ctx context.Context, channelID, messageID string, embed *Embed) error
}

// Service runs sync passes and display refreshes.
type Service struct {
	store     Store
	fetcher   Fetcher
	messenger Messenger

	topN            int
	totalAchievable int
	emojis          map[string]string

	running sync.Map
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a Service wired to its store, fetcher, and messenger.
func NewService(st Store, fetcher Fetcher, messenger Messenger, opts ...Option) *Service {
	s := &Service{
		store:           st,
		fetcher:         fetcher,
		messenger:       messenger,
		topN:            50,
		totalAchievable: 1581,
		emojis:          map[string]string{},
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("app")
	}

	return s
}

// SyncAll runs a pass for every scope with linked accounts. A failing scope
// is logged and skipped so one guild cannot starve the rest.
func (s *Service) SyncAll(ctx context.Context) {
	scopes, err := s.store.Scopes(ctx)
	if err != nil {
		metrics.RecordSyncError()
		s.log.Error(ctx, "list scopes failed", logger.Error(err))
		return
	}

	for _, scope := range scopes {
		if err := s.Sync(ctx, scope, false); err != nil {
			s.log.Error(ctx, "sync pass failed",
				logger.String("scope", scope), logger.Error(err))
		}
	}
}

// Sync reconciles one scope: fetch every tracked player, apply the
// carry-forward policy, persist the snapshot, and publish the board.
// Manual passes bypass the result cache. At most one pass runs per scope.
func (s *Service) Sync(ctx context.Context, scope string, manual bool) error {
	if _, loaded := s.running.LoadOrStore(scope, struct{}{}); loaded {
		return ErrSyncInProgress
	}
	defer s.running.Delete(scope)

	trigger := "scheduled"
	if manual {
		trigger = "manual"
	}

	run := uuid.NewString()
	log := s.log.Named("pass")
	start := s.now()
	log.Info(ctx, "sync pass started",
		logger.String("run_id", run),
		logger.String("scope", scope),
		logger.String("trigger", trigger),
	)

	players, err := s.store.Players(ctx, scope)
	if err != nil {
		metrics.RecordSyncError()
		return fmt.Errorf("list players: %w", err)
	}

	previous, err := s.store.Snapshot(ctx, scope)
	if err != nil {
		metrics.RecordSyncError()
		return fmt.Errorf("load snapshot: %w", err)
	}

	records := make([]store.Record, 0, len(players))
	for _, player := range players {
		if err := ctx.Err(); err != nil {
			return err
		}

		prev, hasPrev := previous[player]
		res, err := s.fetcher.GetOrFetch(ctx, player, manual)
		if err != nil {
			metrics.RecordParticipantSkipped()
			if hasPrev {
				log.Warn(ctx, "lookup failed, carrying previous total",
					logger.String("run_id", run),
					logger.String("player", player),
					logger.Error(err),
				)
				records = append(records, prev)
				continue
			}
			log.Warn(ctx, "lookup failed, skipping player this pass",
				logger.String("run_id", run),
				logger.String("player", player),
				logger.Error(err),
			)
			continue
		}

		metrics.RecordParticipantProcessed()
		records = append(records, store.Record{
			Player:     player,
			Total:      score.Resolve(res.Total, prev.Total, hasPrev),
			SourceRank: res.SourceRank,
		})
	}

	if err := s.store.SaveSnapshot(ctx, scope, records); err != nil {
		metrics.RecordSyncError()
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := s.publish(ctx, scope, toEntries(records)); err != nil {
		switch {
		case errors.Is(err, ErrNoChannel):
			log.Debug(ctx, "no channel configured, skipping publish",
				logger.String("run_id", run), logger.String("scope", scope))
		case errors.Is(err, ErrForbidden):
			// The snapshot is already saved; a channel the bot cannot
			// post in does not fail the pass.
			log.Warn(ctx, "cannot publish to configured channel",
				logger.String("run_id", run),
				logger.String("scope", scope),
				logger.Error(err),
			)
		default:
			metrics.RecordSyncError()
			return fmt.Errorf("publish: %w", err)
		}
	}

	elapsed := s.now().Sub(start)
	metrics.RecordSyncPass(trigger)
	metrics.RecordSyncDuration(elapsed.Seconds())
	log.Info(ctx, "sync pass finished",
		logger.String("run_id", run),
		logger.String("scope", scope),
		logger.Int("players", len(players)),
		logger.Int("records", len(records)),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

// RefreshDisplay republishes the board for one scope from stored rows only,
// without touching the hiscore source.
func (s *Service) RefreshDisplay(ctx context.Context, scope string) error {
	snapshot, err := s.store.Snapshot(ctx, scope)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	entries := make([]rank.Entry, 0, len(snapshot))
	for _, r := range snapshot {
		entries = append(entries, rank.Entry{Key: r.Player, Total: r.Total, SourceRank: r.SourceRank})
	}
	return s.publish(ctx, scope, entries)
}

// publish renders the ordered snapshot and edits the tracked message in
// place, creating a fresh one when none is tracked or the old one is gone.
func (s *Service) publish(ctx context.Context, scope string, entries []rank.Entry) error {
	ds, err := s.store.DisplayState(ctx, scope)
	if err != nil {
		return err
	}
	if ds.ChannelID == "" {
		return ErrNoChannel
	}

	rank.Order(entries)
	entries = rank.Top(entries, s.topN)

	accounts, err := s.store.Accounts(ctx, scope)
	if err != nil {
		return err
	}
	embed := s.render(entries, accounts, s.now().UTC())

	if ds.MessageID != "" {
		err := s.messenger.EditEmbed(ctx, ds.ChannelID, ds.MessageID, embed)
		switch {
		case err == nil:
			metrics.RecordPublishEdit()
			return nil
		case errors.Is(err, ErrArtifactNotFound):
			// The tracked message was deleted out from under us.
			s.log.Warn(ctx, "tracked message gone, creating a new one",
				logger.String("scope", scope))
			if err := s.store.ClearMessageID(ctx, scope); err != nil {
				return err
			}
		default:
			metrics.RecordPublishError()
			return err
		}
	}

	messageID, err := s.messenger.SendEmbed(ctx, ds.ChannelID, embed)
	if err != nil {
		metrics.RecordPublishError()
		return err
	}
	metrics.RecordPublishCreate()
	return s.store.SetMessageID(ctx, scope, messageID)
}

func toEntries(records []store.Record) []rank.Entry {
	entries := make([]rank.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, rank.Entry{Key: r.Player, Total: r.Total, SourceRank: r.SourceRank})
	}
	return entries
}
