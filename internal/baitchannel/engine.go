package baitchannel

import (
	"context"
	"discord-baitchannel-bot/internal/metrics"
	"discord-baitchannel-bot/internal/models"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrMissingDependency = errors.New("baitchannel: missing dependency")
	ErrInvalidConfig     = errors.New("baitchannel: invalid config")
)

type Options struct {
	Platform    Platform
	Configs     ConfigSource
	ConfigStore ConfigStore
	Activity    ActivityStore
	Audit       AuditStore
	Logger      *zap.Logger

	// Optional
	Scheduler        Scheduler        // default: time.AfterFunc
	Now              func() time.Time // default: time.Now
	OperationTimeout time.Duration    // bounds work started by a timer; default 30s
	FetchRetryDelay  time.Duration    // wait before re-fetching after a transient error; default 2s
}

// Engine watches bait channels and acts on the members who post in them.
type Engine struct {
	platform    Platform
	configs     ConfigSource
	configStore ConfigStore
	activity    ActivityStore
	audit       AuditStore
	logger      *zap.Logger
	scheduler   Scheduler
	now         func() time.Time
	opTimeout   time.Duration

	fetchRetryDelay time.Duration

	pending *PendingTable
	tracker *Tracker

	// Parent of every context created outside a caller's request
	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) (*Engine, error) {
	switch {
	case opts.Platform == nil:
		return nil, fmt.Errorf("%w: platform", ErrMissingDependency)
	case opts.Configs == nil:
		return nil, fmt.Errorf("%w: config source", ErrMissingDependency)
	case opts.ConfigStore == nil:
		return nil, fmt.Errorf("%w: config store", ErrMissingDependency)
	case opts.Activity == nil:
		return nil, fmt.Errorf("%w: activity store", ErrMissingDependency)
	case opts.Audit == nil:
		return nil, fmt.Errorf("%w: audit store", ErrMissingDependency)
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OperationTimeout == 0 {
		opts.OperationTimeout = 30 * time.Second
	}

	if opts.FetchRetryDelay == 0 {
		opts.FetchRetryDelay = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		platform:    opts.Platform,
		configs:     opts.Configs,
		configStore: opts.ConfigStore,
		activity:    opts.Activity,
		audit:       opts.Audit,
		logger:      opts.Logger,
		scheduler:   opts.Scheduler,
		now:         opts.Now,
		opTimeout:   opts.OperationTimeout,

		fetchRetryDelay: opts.FetchRetryDelay,
		pending:     NewPendingTable(),
		ctx:         ctx,
		cancel:      cancel,
	}
	e.tracker = NewTracker(opts.Configs, opts.Activity, opts.Now, opts.Logger)
	return e, nil
}

// HandleMessage evaluates a newly created guild message.
func (e *Engine) HandleMessage(ctx context.Context, msg *Message) {
	if msg.GuildID == "" || msg.AuthorBot || msg.WebhookID != "" {
		return
	}

	cfg, err := e.configs.Get(ctx, msg.GuildID)
	if err != nil {
		e.storeFailed("get_config", err, messageFields(msg))
		return
	}
	if cfg == nil || !cfg.Enabled || cfg.ChannelID != msg.ChannelID {
		return
	}

	fields := messageFields(msg)
	member := e.resolveMember(ctx, msg)

	if wl := CheckWhitelist(member, cfg); wl.Whitelisted {
		e.logger.Info("whitelisted member posted in bait channel", append(fields, zap.String("reason", wl.Reason))...)
		e.attempt("delete_message", fields, func() error {
			return e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID)
		})
		e.finish(ctx, cfg, e.newLogEntry(member, msg, SuspicionAnalysis{}, models.BaitActionWhitelisted, wl.Reason))
		return
	}

	analysis := e.analyze(ctx, member, msg, cfg)
	metrics.SuspicionScore.Observe(float64(analysis.Score))

	e.logger.Info("bait channel message scored",
		append(fields, zap.Int("score", analysis.Score), zap.Strings("reasons", analysis.Reasons))...)

	e.decide(ctx, member, msg, cfg, analysis)
}

// HandleMessageDelete cancels the grace period triggered by messageID, if any.
func (e *Engine) HandleMessageDelete(ctx context.Context, messageID, guildID string) {
	d, ok := e.pending.TakeByMessage(messageID)
	if !ok {
		return
	}
	d.stopTimer()

	e.logger.Info("bait message deleted during grace period",
		zap.String("guild_id", guildID),
		zap.String("message_id", messageID),
		zap.String("user_id", d.UserID))

	e.resolveDeleted(ctx, d, "Message deleted during grace period")
}

// TrackMessage counts an ordinary message towards the author's activity.
func (e *Engine) TrackMessage(ctx context.Context, msg *Message) {
	e.tracker.Track(ctx, msg)
}

// InvalidateConfigCache must be called after any external config write.
func (e *Engine) InvalidateConfigCache(guildID string) {
	e.configs.Invalidate(guildID)
}

// SaveConfig validates and persists cfg, then drops the cached copy.
func (e *Engine) SaveConfig(ctx context.Context, cfg *models.DetectionConfig) error {
	if cfg == nil || cfg.GuildID == "" || cfg.ChannelID == "" {
		return fmt.Errorf("%w: guild and channel are required", ErrInvalidConfig)
	}
	if !models.IsValidActionType(cfg.ActionType) {
		return fmt.Errorf("%w: action type %q", ErrInvalidConfig, cfg.ActionType)
	}
	if cfg.GracePeriodSeconds < 0 {
		return fmt.Errorf("%w: grace period must not be negative", ErrInvalidConfig)
	}

	name, err := e.platform.FetchChannel(ctx, cfg.ChannelID)
	if err != nil {
		return fmt.Errorf("bait channel %s: %w", cfg.ChannelID, err)
	}

	if err := e.configStore.SaveDetectionConfig(ctx, cfg); err != nil {
		return err
	}
	e.configs.Invalidate(cfg.GuildID)

	e.logger.Info("bait channel configured",
		zap.String("guild_id", cfg.GuildID),
		zap.String("channel_id", cfg.ChannelID),
		zap.String("channel_name", name),
		zap.String("action", cfg.ActionType),
		zap.Int("grace_seconds", cfg.GracePeriodSeconds))
	return nil
}

// ConfigureChannel points the guild's bait channel at channelID and enables
// it. A guild with no config starts from the defaults.
func (e *Engine) ConfigureChannel(ctx context.Context, guildID, channelID string) (*models.DetectionConfig, error) {
	current, err := e.configs.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var cfg *models.DetectionConfig
	if current == nil {
		cfg = models.DefaultDetectionConfig(guildID, channelID)
	} else {
		// Cached values are shared
		cp := *current
		cfg = &cp
		cfg.ChannelID = channelID
	}
	cfg.Enabled = true

	if err := e.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeleteConfig removes the guild's config and drops the cached copy.
// Grace periods already armed keep the config they were armed with.
func (e *Engine) DeleteConfig(ctx context.Context, guildID string) error {
	if err := e.configStore.DeleteDetectionConfig(ctx, guildID); err != nil {
		return err
	}
	e.configs.Invalidate(guildID)

	e.logger.Info("bait channel config deleted", zap.String("guild_id", guildID))
	return nil
}

// PendingCount returns the number of armed grace periods.
func (e *Engine) PendingCount() int {
	return e.pending.Len()
}

// Close stops every armed timer. Pending grace periods are dropped.
func (e *Engine) Close() {
	e.cancel()
	if drained := e.pending.Drain(); len(drained) > 0 {
		e.logger.Info("dropped pending grace periods on shutdown", zap.Int("count", len(drained)))
	}
}

func (e *Engine) resolveMember(ctx context.Context, msg *Message) *Member {
	m, err := e.platform.FetchMember(ctx, msg.GuildID, msg.AuthorID)
	if err == nil && m != nil {
		return m
	}
	if err != nil {
		metrics.PlatformErrorsTotal.WithLabelValues("fetch_member").Inc()
	}
	e.logger.Warn("member fetch failed, using message data", append(messageFields(msg), zap.Error(err))...)
	return partialMember(msg)
}

func partialMember(msg *Message) *Member {
	roles := make([]Role, 0, len(msg.MemberRoleIDs))
	for _, id := range msg.MemberRoleIDs {
		roles = append(roles, Role{ID: id})
	}
	return &Member{
		UserID:         msg.AuthorID,
		Username:       msg.AuthorName,
		AccountCreated: msg.AuthorCreated,
		JoinedAt:       msg.MemberJoinedAt,
		Roles:          roles,
		Partial:        true,
	}
}

func (e *Engine) analyze(ctx context.Context, member *Member, msg *Message, cfg *models.DetectionConfig) SuspicionAnalysis {
	count := e.messageCount(ctx, msg)
	if !cfg.EnableSmartDetection {
		return SuspicionAnalysis{MessageCount: count}
	}

	return Analyze(ScoreInput{
		Content:        msg.Content,
		AccountCreated: member.AccountCreated,
		JoinedAt:       member.JoinedAt,
		MessageCount:   count,
		RoleNames:      member.RoleNames(),
		MentionCount:   msg.MentionCount,
		Now:            e.now(),
	}, cfg)
}

// Store failures count as no history.
func (e *Engine) messageCount(ctx context.Context, msg *Message) int {
	rec, err := e.activity.GetActivity(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		e.storeFailed("get_activity", err, messageFields(msg))
		return 0
	}
	if rec == nil {
		return 0
	}
	return rec.MessageCount
}
