package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/varrock/clogboard/internal/adapters/store"
	"github.com/varrock/clogboard/internal/domain/rank"
	"github.com/varrock/clogboard/internal/domain/score"
	"github.com/varrock/clogboard/pkg/logger"
)

type fakeStore struct {
	mu       sync.Mutex
	scopes   []string
	players  map[string][]string
	snapshot map[string]map[string]store.Record
	accounts map[string]map[string]store.Account
	display  map[string]store.DisplayState
	saved    []store.Record
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:  map[string][]string{},
		snapshot: map[string]map[string]store.Record{},
		accounts: map[string]map[string]store.Account{},
		display:  map[string]store.DisplayState{},
	}
}

func (f *fakeStore) Scopes(context.Context) ([]string, error) { return f.scopes, nil }

func (f *fakeStore) Players(_ context.Context, scope string) ([]string, error) {
	return f.players[scope], nil
}

func (f *fakeStore) Snapshot(_ context.Context, scope string) (map[string]store.Record, error) {
	snap := make(map[string]store.Record, len(f.snapshot[scope]))
	for k, v := range f.snapshot[scope] {
		snap[k] = v
	}
	return snap, nil
}

func (f *fakeStore) SaveSnapshot(_ context.Context, scope string, records []store.Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = records
	if f.snapshot[scope] == nil {
		f.snapshot[scope] = map[string]store.Record{}
	}
	for _, r := range records {
		f.snapshot[scope][r.Player] = r
	}
	return nil
}

func (f *fakeStore) Accounts(_ context.Context, scope string) (map[string]store.Account, error) {
	return f.accounts[scope], nil
}

func (f *fakeStore) DisplayState(_ context.Context, scope string) (store.DisplayState, error) {
	return f.display[scope], nil
}

func (f *fakeStore) SetMessageID(_ context.Context, scope, messageID string) error {
	ds := f.display[scope]
	ds.MessageID = messageID
	f.display[scope] = ds
	return nil
}

func (f *fakeStore) ClearMessageID(_ context.Context, scope string) error {
	ds := f.display[scope]
	ds.MessageID = ""
	f.display[scope] = ds
	return nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	results  map[string]score.Result
	errs     map[string]error
	calls    []string
	bypasses []bool
	block    chan struct{}
}

func (f *fakeFetcher) GetOrFetch(ctx context.Context, player string, bypass bool) (score.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, player)
	f.bypasses = append(f.bypasses, bypass)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return score.Result{}, ctx.Err()
		}
	}
	if err, ok := f.errs[player]; ok {
		return score.Result{}, err
	}
	return f.results[player], nil
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []*Embed
	edited    []*Embed
	editErr   error
	sendErr   error
	nextID    string
	editedIDs []string
}

func (f *fakeMessenger) SendEmbed(_ context.Context, channelID string, embed *Embed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, embed)
	if f.nextID == "" {
		f.nextID = "msg-1"
	}
	return f.nextID, nil
}

func (f *fakeMessenger) EditEmbed(_ context.Context, channelID, messageID string, embed *Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, embed)
	f.editedIDs = append(f.editedIDs, messageID)
	return nil
}

func newTestService(st *fakeStore, ff *fakeFetcher, fm *fakeMessenger, opts ...Option) *Service {
	_ = logger.Init()
	return NewService(st, ff, fm, opts...)
}

func TestSync(t *testing.T) {
	Convey("Given a scope with tracked players and a configured channel", t, func() {
		ctx := context.Background()
		st := newFakeStore()
		st.players["g1"] = []string{"alpha", "bravo", "charlie"}
		st.display["g1"] = store.DisplayState{ChannelID: "chan-1"}
		ff := &fakeFetcher{results: map[string]score.Result{
			"alpha":   {Total: score.Known(900), SourceRank: 3},
			"bravo":   {Total: score.Known(1200), SourceRank: 1},
			"charlie": {Total: score.BelowFloor(), SourceRank: -1},
		}, errs: map[string]error{}}
		fm := &fakeMessenger{}
		svc := newTestService(st, ff, fm)

		Convey("When a scheduled pass runs", func() {
			err := svc.Sync(ctx, "g1", false)

			Convey("Then it persists one record per player", func() {
				So(err, ShouldBeNil)
				So(len(st.saved), ShouldEqual, 3)
			})

			Convey("Then it publishes a fresh message and tracks its id", func() {
				So(err, ShouldBeNil)
				So(len(fm.sent), ShouldEqual, 1)
				So(st.display["g1"].MessageID, ShouldEqual, "msg-1")
			})

			Convey("Then the board is ordered by total descending", func() {
				So(err, ShouldBeNil)
				desc := fm.sent[0].Description
				So(strings.Index(desc, "bravo"), ShouldBeLessThan, strings.Index(desc, "alpha"))
				So(strings.Index(desc, "alpha"), ShouldBeLessThan, strings.Index(desc, "charlie"))
			})

			Convey("Then the cache is not bypassed", func() {
				So(ff.bypasses, ShouldResemble, []bool{false, false, false})
			})
		})

		Convey("When a manual pass runs", func() {
			So(svc.Sync(ctx, "g1", true), ShouldBeNil)

			Convey("Then every lookup bypasses the cache", func() {
				So(ff.bypasses, ShouldResemble, []bool{true, true, true})
			})
		})

		Convey("When a tracked message already exists", func() {
			st.display["g1"] = store.DisplayState{ChannelID: "chan-1", MessageID: "msg-0"}
			So(svc.Sync(ctx, "g1", false), ShouldBeNil)

			Convey("Then the message is edited in place", func() {
				So(len(fm.edited), ShouldEqual, 1)
				So(fm.editedIDs, ShouldResemble, []string{"msg-0"})
				So(len(fm.sent), ShouldEqual, 0)
			})
		})

		Convey("When the tracked message was deleted", func() {
			st.display["g1"] = store.DisplayState{ChannelID: "chan-1", MessageID: "msg-0"}
			fm.editErr = ErrArtifactNotFound
			So(svc.Sync(ctx, "g1", false), ShouldBeNil)

			Convey("Then a replacement is created and tracked", func() {
				So(len(fm.sent), ShouldEqual, 1)
				So(st.display["g1"].MessageID, ShouldEqual, "msg-1")
			})
		})

		Convey("When the bot lacks channel permissions", func() {
			st.display["g1"] = store.DisplayState{ChannelID: "chan-1", MessageID: "msg-0"}
			fm.editErr = ErrForbidden
			err := svc.Sync(ctx, "g1", false)

			Convey("Then the pass still succeeds with its data persisted", func() {
				So(err, ShouldBeNil)
				So(len(st.saved), ShouldEqual, 3)
				So(len(fm.sent), ShouldEqual, 0)
			})
		})

		Convey("When the publish fails for another reason", func() {
			st.display["g1"] = store.DisplayState{ChannelID: "chan-1", MessageID: "msg-0"}
			fm.editErr = errors.New("gateway exploded")
			err := svc.Sync(ctx, "g1", false)

			Convey("Then the pass reports the failure", func() {
				So(err, ShouldNotBeNil)
				So(len(st.saved), ShouldEqual, 3)
			})
		})

		Convey("When no channel is configured", func() {
			st.display["g1"] = store.DisplayState{}
			err := svc.Sync(ctx, "g1", false)

			Convey("Then the pass still persists but publishes nothing", func() {
				So(err, ShouldBeNil)
				So(len(st.saved), ShouldEqual, 3)
				So(len(fm.sent), ShouldEqual, 0)
			})
		})

		Convey("When a lookup fails for a player with history", func() {
			ff.errs["alpha"] = errors.New("boom")
			st.snapshot["g1"] = map[string]store.Record{
				"alpha": {Player: "alpha", Total: score.Known(890), SourceRank: 4},
			}
			So(svc.Sync(ctx, "g1", false), ShouldBeNil)

			Convey("Then the previous total is carried forward", func() {
				So(st.snapshot["g1"]["alpha"].Total.Raw(), ShouldEqual, 890)
				So(st.snapshot["g1"]["alpha"].SourceRank, ShouldEqual, 4)
			})
		})

		Convey("When a lookup fails for a player without history", func() {
			ff.errs["alpha"] = errors.New("boom")
			So(svc.Sync(ctx, "g1", false), ShouldBeNil)

			Convey("Then the player is absent from this pass", func() {
				So(len(st.saved), ShouldEqual, 2)
			})
		})

		Convey("When a below-floor answer follows a plausible stored total", func() {
			st.snapshot["g1"] = map[string]store.Record{
				"charlie": {Player: "charlie", Total: score.Known(480), SourceRank: -1},
			}
			So(svc.Sync(ctx, "g1", false), ShouldBeNil)

			Convey("Then the stored total survives the pass", func() {
				So(st.snapshot["g1"]["charlie"].Total.Raw(), ShouldEqual, 480)
			})
		})

		Convey("When a second pass for the scope starts mid-flight", func() {
			ff.block = make(chan struct{})
			done := make(chan error, 1)
			go func() { done <- svc.Sync(ctx, "g1", false) }()

			// Wait for the first pass to reach the fetcher.
			So(func() bool {
				for i := 0; i < 100; i++ {
					ff.mu.Lock()
					n := len(ff.calls)
					ff.mu.Unlock()
					if n > 0 {
						return true
					}
					time.Sleep(time.Millisecond)
				}
				return false
			}(), ShouldBeTrue)

			err := svc.Sync(ctx, "g1", true)
			close(ff.block)
			So(<-done, ShouldBeNil)

			Convey("Then the overlapping pass is rejected", func() {
				So(errors.Is(err, ErrSyncInProgress), ShouldBeTrue)
			})
		})
	})
}

func TestSyncAll(t *testing.T) {
	Convey("Given two scopes where one store save fails", t, func() {
		ctx := context.Background()
		st := newFakeStore()
		st.scopes = []string{"g1", "g2"}
		st.players["g1"] = []string{"alpha"}
		st.players["g2"] = []string{"bravo"}
		st.display["g1"] = store.DisplayState{ChannelID: "chan-1"}
		st.display["g2"] = store.DisplayState{ChannelID: "chan-2"}
		ff := &fakeFetcher{results: map[string]score.Result{
			"alpha": {Total: score.Known(700), SourceRank: 9},
			"bravo": {Total: score.Known(800), SourceRank: 5},
		}, errs: map[string]error{}}
		fm := &fakeMessenger{}
		svc := newTestService(st, ff, fm)

		Convey("When all scopes sync", func() {
			svc.SyncAll(ctx)

			Convey("Then every scope got a pass", func() {
				So(ff.calls, ShouldResemble, []string{"alpha", "bravo"})
				So(len(fm.sent), ShouldEqual, 2)
			})
		})
	})
}

func TestRefreshDisplay(t *testing.T) {
	Convey("Given stored rows and a configured channel", t, func() {
		ctx := context.Background()
		st := newFakeStore()
		st.display["g1"] = store.DisplayState{ChannelID: "chan-1", MessageID: "msg-0"}
		st.snapshot["g1"] = map[string]store.Record{
			"alpha": {Player: "alpha", Total: score.Known(700), SourceRank: 9},
			"bravo": {Player: "bravo", Total: score.Known(800), SourceRank: 5},
		}
		ff := &fakeFetcher{}
		fm := &fakeMessenger{}
		svc := newTestService(st, ff, fm)

		Convey("When the display refreshes", func() {
			err := svc.RefreshDisplay(ctx, "g1")

			Convey("Then it edits without fetching", func() {
				So(err, ShouldBeNil)
				So(len(fm.edited), ShouldEqual, 1)
				So(len(ff.calls), ShouldEqual, 0)
			})
		})

		Convey("When every stored row is fully tied", func() {
			st.snapshot["g1"] = map[string]store.Record{}
			for _, p := range []string{"echo", "alpha", "delta", "bravo", "charlie"} {
				st.snapshot["g1"][p] = store.Record{Player: p, Total: score.BelowFloor(), SourceRank: -1}
			}

			Convey("Then repeated refreshes publish one identical ordering", func() {
				So(svc.RefreshDisplay(ctx, "g1"), ShouldBeNil)
				first := fm.edited[0].Description
				for i := 0; i < 49; i++ {
					So(svc.RefreshDisplay(ctx, "g1"), ShouldBeNil)
				}
				for _, e := range fm.edited {
					So(e.Description, ShouldEqual, first)
				}
				So(strings.Index(first, "alpha"), ShouldBeLessThan, strings.Index(first, "bravo"))
				So(strings.Index(first, "delta"), ShouldBeLessThan, strings.Index(first, "echo"))
			})
		})
	})
}

func TestRender(t *testing.T) {
	Convey("Given a service with emojis and a fixed clock", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		st := newFakeStore()
		svc := newTestService(st, &fakeFetcher{}, &fakeMessenger{},
			WithTopN(50),
			WithTotalAchievable(1581),
			WithAccountEmojis(map[string]string{"Iron": "<:iron:1>"}),
			WithClock(func() time.Time { return now }),
		)
		accounts := map[string]store.Account{
			"bravo": {Player: "bravo", Category: "Iron", Decoration: "🔥"},
		}

		Convey("When a full podium renders", func() {
			entries := []rank.Entry{
				{Key: "alpha", Total: score.Known(1234), SourceRank: 1},
				{Key: "bravo", Total: score.Known(900), SourceRank: 2},
				{Key: "charlie", Total: score.Known(800), SourceRank: 3},
				{Key: "delta", Total: score.BelowFloor(), SourceRank: -1},
			}
			embed := svc.render(entries, accounts, now)

			Convey("Then the title names the board size", func() {
				So(embed.Title, ShouldEqual, "🏆 Collection Log Leaderboard (Top 50) 🏆")
				So(embed.Color, ShouldEqual, 0xF5C243)
			})

			Convey("Then first place shows the achievable total", func() {
				So(embed.Description, ShouldContainSubstring, "🥇 **alpha** — 1,234 / 1,581")
			})

			Convey("Then linked attributes decorate the row", func() {
				So(embed.Description, ShouldContainSubstring, "🥈 <:iron:1> **bravo** 🔥 — 900")
			})

			Convey("Then a below-floor total renders as the floor marker", func() {
				So(embed.Description, ShouldContainSubstring, "**delta** — <500")
			})

			Convey("Then a blank line separates the podium from the field", func() {
				So(embed.Description, ShouldContainSubstring, "800\n\n")
			})

			Convey("Then the footer carries the refresh timestamp", func() {
				So(embed.FooterText, ShouldEqual, "Last updated")
				So(embed.Timestamp.Equal(now), ShouldBeTrue)
			})
		})

		Convey("When no entries exist", func() {
			embed := svc.render(nil, nil, now)

			Convey("Then the description invites linking", func() {
				So(embed.Description, ShouldContainSubstring, "/link")
			})
		})
	})
}

func TestGroupDigits(t *testing.T) {
	Convey("Given assorted totals", t, func() {
		Convey("Then separators land every three digits", func() {
			So(groupDigits(0), ShouldEqual, "0")
			So(groupDigits(500), ShouldEqual, "500")
			So(groupDigits(1581), ShouldEqual, "1,581")
			So(groupDigits(123456), ShouldEqual, "123,456")
			So(groupDigits(1234567), ShouldEqual, "1,234,567")
		})
	})
}
