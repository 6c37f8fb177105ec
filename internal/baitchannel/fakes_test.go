package baitchannel

import (
	"context"
	"discord-baitchannel-bot/internal/models"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakePlatform records every call. Messages in `messages` exist until deleted.
type fakePlatform struct {
	mu       sync.Mutex
	members  map[string]*Member
	messages map[string]*Message

	deleted []string
	bans    []string
	kicks   []string
	replies []string
	embeds  []*discordgo.MessageEmbed

	banErr    error
	kickErr   error
	replyErr  error
	memberErr error
	fetchErr  error // overrides the message lookup when set
	// returned by the next fetchFailures lookups, then cleared
	transientErr  error
	fetchFailures int
	fetches       int

	replySeq atomic.Int64
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:  make(map[string]*Member),
		messages: make(map[string]*Message),
	}
}

func (p *fakePlatform) FetchMember(ctx context.Context, guildID, userID string) (*Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.memberErr != nil {
		return nil, p.memberErr
	}
	m, ok := p.members[userID]
	if !ok {
		return nil, fmt.Errorf("unknown member %s", userID)
	}
	return m, nil
}

func (p *fakePlatform) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.fetchFailures > 0 {
		p.fetchFailures--
		return nil, p.transientErr
	}
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	m, ok := p.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

func (p *fakePlatform) FetchChannel(ctx context.Context, channelID string) (string, error) {
	if channelID == "missing" {
		return "", fmt.Errorf("Unknown Channel")
	}
	return "bait-" + channelID, nil
}

func (p *fakePlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	delete(p.messages, messageID)
	return nil
}

func (p *fakePlatform) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.banErr != nil {
		return p.banErr
	}
	p.bans = append(p.bans, userID+"|"+reason+"|"+fmt.Sprint(deleteDays))
	return nil
}

func (p *fakePlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kickErr != nil {
		return p.kickErr
	}
	p.kicks = append(p.kicks, userID)
	return nil
}

func (p *fakePlatform) Reply(ctx context.Context, channelID, replyToID, content string, embed *discordgo.MessageEmbed) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.replyErr != nil {
		return "", p.replyErr
	}
	id := fmt.Sprintf("warn-%d", p.replySeq.Add(1))
	p.replies = append(p.replies, id)
	return id, nil
}

func (p *fakePlatform) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embeds = append(p.embeds, embed)
	return nil
}

func (p *fakePlatform) post(msg *Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[msg.ID] = msg
}

func (p *fakePlatform) snapshot() (deleted, bans, kicks, replies []string, embeds []*discordgo.MessageEmbed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...),
		append([]string(nil), p.bans...),
		append([]string(nil), p.kicks...),
		append([]string(nil), p.replies...),
		append([]*discordgo.MessageEmbed(nil), p.embeds...)
}

// fakeStore backs every persistence interface plus the config source.
type fakeStore struct {
	mu          sync.Mutex
	configs     map[string]*models.DetectionConfig
	activity    map[string]*models.ActivityRecord
	logs        []*models.BaitLogEntry
	invalidated []string

	auditErr    error
	activityErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:  make(map[string]*models.DetectionConfig),
		activity: make(map[string]*models.ActivityRecord),
	}
}

func (s *fakeStore) Get(ctx context.Context, guildID string) (*models.DetectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[guildID], nil
}

func (s *fakeStore) Invalidate(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, guildID)
}

func (s *fakeStore) SaveDetectionConfig(ctx context.Context, cfg *models.DetectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.GuildID] = cfg
	return nil
}

func (s *fakeStore) DeleteDetectionConfig(ctx context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, guildID)
	return nil
}

func (s *fakeStore) GetActivity(ctx context.Context, guildID, userID string) (*models.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityErr != nil {
		return nil, s.activityErr
	}
	return s.activity[guildID+"/"+userID], nil
}

func (s *fakeStore) RecordMessage(ctx context.Context, guildID, userID string, joinedAt, seenAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityErr != nil {
		return s.activityErr
	}
	key := guildID + "/" + userID
	rec, ok := s.activity[key]
	if !ok {
		s.activity[key] = &models.ActivityRecord{GuildID: guildID, UserID: userID, MessageCount: 1, FirstSeen: seenAt, LastSeen: seenAt, JoinedAt: joinedAt}
		return nil
	}
	rec.MessageCount++
	rec.LastSeen = seenAt
	return nil
}

func (s *fakeStore) InsertBaitLog(ctx context.Context, e *models.BaitLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	s.logs = append(s.logs, e)
	return nil
}

func (s *fakeStore) entries() []*models.BaitLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.BaitLogEntry(nil), s.logs...)
}

// fakeScheduler never fires on its own; tests call fire.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped atomic.Bool
	fired   atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired.Load() {
		return false
	}
	return !t.stopped.Swap(true)
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs timer i as the runtime would, unless it was stopped.
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	t := s.timers[i]
	s.mu.Unlock()
	if t.stopped.Load() || t.fired.Swap(true) {
		return
	}
	t.f()
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type harness struct {
	engine    *Engine
	platform  *fakePlatform
	store     *fakeStore
	scheduler *fakeScheduler
	cfg       *models.DetectionConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		platform:  newFakePlatform(),
		store:     newFakeStore(),
		scheduler: &fakeScheduler{},
	}

	h.cfg = models.DefaultDetectionConfig("guild", "bait")
	h.cfg.LogChannelID = "logs"
	h.store.configs["guild"] = h.cfg

	e, err := New(Options{
		Platform:    h.platform,
		Configs:     h.store,
		ConfigStore: h.store,
		Activity:    h.store,
		Audit:       h.store,
		Logger:      zap.NewNop(),
		Scheduler:   h.scheduler,
		Now:         func() time.Time { return testNow },

		FetchRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	h.engine = e
	return h
}

// suspect registers a member who trips the age and membership signals only.
func (h *harness) suspect(userID string) *Member {
	m := &Member{
		UserID:         userID,
		Username:       "user-" + userID,
		AccountCreated: testNow.Add(-24 * time.Hour),
		JoinedAt:       testNow.Add(-time.Minute),
	}
	h.platform.mu.Lock()
	h.platform.members[userID] = m
	h.platform.mu.Unlock()
	return m
}

func (h *harness) baitMessage(id, userID, content string) *Message {
	msg := &Message{
		ID:            id,
		ChannelID:     "bait",
		GuildID:       "guild",
		Content:       content,
		AuthorID:      userID,
		AuthorName:    "user-" + userID,
		AuthorCreated: testNow.Add(-24 * time.Hour),
		Timestamp:     testNow,
	}
	h.platform.post(msg)
	return msg
}
