package baitchannel

import (
	"discord-baitchannel-bot/internal/metrics"
	"discord-baitchannel-bot/internal/models"
	"sync"
	"time"
)

// Key identifies one grace period. Message IDs are globally unique, so no
// guild ID is needed.
type Key struct {
	UserID    string
	MessageID string
}

// PendingDecision is an armed grace period.
type PendingDecision struct {
	Key
	ChannelID string
	GuildID   string
	ArmedAt   time.Time
	Score     int
	Analysis  SuspicionAnalysis

	// Captured at arm time and used when the period expires
	Member  *Member
	Message *Message
	Config  *models.DetectionConfig

	// Set by Attach once the warning is sent and the timer is running
	WarningMessageID string
	timer            Timer
}

// PendingTable holds every armed grace period. Removal goes through Take
// or TakeByMessage, which hand a decision to exactly one caller.
type PendingTable struct {
	mu        sync.Mutex
	byKey     map[Key]*PendingDecision
	byMessage map[string]Key
}

func NewPendingTable() *PendingTable {
	return &PendingTable{
		byKey:     make(map[Key]*PendingDecision),
		byMessage: make(map[string]Key),
	}
}

// Put records d. It returns false if the key is already armed.
func (t *PendingTable) Put(d *PendingDecision) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byKey[d.Key]; exists {
		return false
	}
	t.byKey[d.Key] = d
	t.byMessage[d.MessageID] = d.Key
	metrics.PendingDecisions.Inc()
	return true
}

// Attach stores the warning reply and timer on a decision that is still
// armed. It returns false if the decision was already taken.
func (t *PendingTable) Attach(key Key, warningMessageID string, timer Timer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.byKey[key]
	if !ok {
		return false
	}
	d.WarningMessageID = warningMessageID
	d.timer = timer
	return true
}

// Take removes and returns the decision for key. Only the first caller
// gets it; everyone after sees (nil, false).
func (t *PendingTable) Take(key Key) (*PendingDecision, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(key)
}

// TakeByMessage is Take looked up by the triggering message ID.
func (t *PendingTable) TakeByMessage(messageID string) (*PendingDecision, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.byMessage[messageID]
	if !ok {
		return nil, false
	}
	return t.removeLocked(key)
}

func (t *PendingTable) removeLocked(key Key) (*PendingDecision, bool) {
	d, ok := t.byKey[key]
	if !ok {
		return nil, false
	}
	delete(t.byKey, key)
	delete(t.byMessage, key.MessageID)
	metrics.PendingDecisions.Dec()
	return d, true
}

// Drain removes every decision and stops its timer.
func (t *PendingTable) Drain() []*PendingDecision {
	t.mu.Lock()
	defer t.mu.Unlock()

	drained := make([]*PendingDecision, 0, len(t.byKey))
	for key, d := range t.byKey {
		if d.timer != nil {
			d.timer.Stop()
		}
		drained = append(drained, d)
		delete(t.byKey, key)
		delete(t.byMessage, key.MessageID)
		metrics.PendingDecisions.Dec()
	}
	return drained
}

// Has reports whether key is currently armed.
func (t *PendingTable) Has(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byKey[key]
	return ok
}

func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey)
}

// stopTimer is called by whoever took d.
func (d *PendingDecision) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
}
