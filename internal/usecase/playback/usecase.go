package playback

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"pricing-workbench/internal/domain/snapshot"
)

var (
	ErrNotInPlayback = errors.New("not in playback mode")
	ErrEmptyHistory  = errors.New("snapshot history is empty")
)

type Mode string

const (
	ModeLive     Mode = "live"
	ModePlayback Mode = "playback"
)

// PlaybackPreview is the per-loan view for historical rendering. Original*
// fields come from the previous snapshot in the sequence, not from the live
// loan record; for the oldest snapshot they equal the current values.
type PlaybackPreview struct {
	LoanID   string `json:"loan_id"`
	Currency string `json:"currency"`

	EffectiveRate  decimal.Decimal `json:"effective_rate"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetProceeds    decimal.Decimal `json:"net_proceeds"`

	OriginalEffectiveRate  decimal.Decimal `json:"original_effective_rate"`
	OriginalInterestAmount decimal.Decimal `json:"original_interest_amount"`
	OriginalTotalFees      decimal.Decimal `json:"original_total_fees"`
	OriginalNetProceeds    decimal.Decimal `json:"original_net_proceeds"`

	Changed bool `json:"changed"`
}

// Controller is the playback state machine. Live means the editing ledger is
// active; Playback means a historical snapshot pair is being viewed and every
// mutation path is rejected at the session boundary. Playback never touches
// the ledger, which stays dormant until Exit.
//
// The session hands the controller to HTTP handlers directly, so concurrent
// view requests can race an exit or a navigation; the controller carries its
// own lock instead of relying on the session mutex.
type Controller struct {
	mu          sync.RWMutex
	mode        Mode
	snapshots   []*snapshot.Snapshot
	index       int
	changedOnly bool
}

func NewController() *Controller {
	return &Controller{mode: ModeLive}
}

// Enter switches Live -> Playback on the given snapshot within its ordered
// history (oldest first). Entering again while already in playback re-anchors
// on the new snapshot.
func (c *Controller) Enter(snapshotID string, history []*snapshot.Snapshot) error {
	if len(history) == 0 {
		return ErrEmptyHistory
	}
	for i, s := range history {
		if s.SnapshotID == snapshotID {
			c.mu.Lock()
			c.mode = ModePlayback
			c.snapshots = history
			c.index = i
			c.mu.Unlock()
			return nil
		}
	}
	return snapshot.ErrNotFound
}

// Exit discards the snapshot context and returns to Live. The editing ledger
// is untouched; it was dormant, not cleared.
func (c *Controller) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeLive
	c.snapshots = nil
	c.index = 0
	c.changedOnly = false
}

func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

func (c *Controller) InPlayback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inPlayback()
}

func (c *Controller) inPlayback() bool { return c.mode == ModePlayback }

func (c *Controller) HasPrevious() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasPrevious()
}

func (c *Controller) HasNext() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasNext()
}

func (c *Controller) hasPrevious() bool { return c.inPlayback() && c.index > 0 }
func (c *Controller) hasNext() bool {
	return c.inPlayback() && c.index < len(c.snapshots)-1
}

// GoToPrevious steps one snapshot back; a no-op at the oldest end.
func (c *Controller) GoToPrevious() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasPrevious() {
		return false
	}
	c.index--
	return true
}

// GoToNext steps one snapshot forward; a no-op at the newest end.
func (c *Controller) GoToNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasNext() {
		return false
	}
	c.index++
	return true
}

// Current returns the snapshot under the cursor, or nil outside playback.
func (c *Controller) Current() *snapshot.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current()
}

func (c *Controller) current() *snapshot.Snapshot {
	if !c.inPlayback() {
		return nil
	}
	return c.snapshots[c.index]
}

// Previous returns the snapshot immediately before the cursor, or nil when
// the cursor is on the oldest snapshot.
func (c *Controller) Previous() *snapshot.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.previous()
}

func (c *Controller) previous() *snapshot.Snapshot {
	if !c.inPlayback() || c.index == 0 {
		return nil
	}
	return c.snapshots[c.index-1]
}

func (c *Controller) SetChangedOnly(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changedOnly = v
}

func (c *Controller) ChangedOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changedOnly
}

// RecordedChanges is the authoritative change list captured when the current
// snapshot was saved. The changed-only filter reads this, never a recomputed
// diff, so floating-point noise in derived figures cannot surface a loan that
// was not actually edited.
func (c *Controller) RecordedChanges() snapshot.Changes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recordedChanges()
}

func (c *Controller) recordedChanges() snapshot.Changes {
	cur := c.current()
	if cur == nil {
		return snapshot.Changes{}
	}
	return cur.Changes
}

// ComputedDiff is the value-level diff of the current pair, derived through
// the snapshot diff engine. It can disagree with RecordedChanges (an edit
// reverted before save records nothing but may still differ by rounding);
// that disagreement is intentional and surfaced to the caller as-is.
func (c *Controller) ComputedDiff() snapshot.Changes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.current()
	if cur == nil {
		return snapshot.Changes{}
	}
	prev := c.previous()
	if prev == nil {
		return snapshot.Changes{}
	}
	return snapshot.Diff(prev, cur)
}

// Deltas aggregates the current pair's computed diff per currency.
func (c *Controller) Deltas() []snapshot.CurrencyDelta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.current()
	prev := c.previous()
	if cur == nil || prev == nil {
		return nil
	}
	return snapshot.Deltas(prev, cur, snapshot.Diff(prev, cur))
}

// VisibleLoanIDs lists the loans the grid should surface: all of the current
// snapshot's loans, or only those in the recorded change list when the
// changed-only filter is on.
func (c *Controller) VisibleLoanIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visibleLoanIDs()
}

func (c *Controller) visibleLoanIDs() []string {
	cur := c.current()
	if cur == nil {
		return nil
	}
	if c.changedOnly {
		return c.recordedChanges().LoanIDs()
	}
	out := make([]string, 0, len(cur.Loans))
	for _, l := range cur.Loans {
		out = append(out, l.LoanID)
	}
	return out
}

// Previews builds the playback view for every visible loan from the captured
// figures of the current pair. No formula runs here: snapshots store their
// derived values, so playback is deterministic.
func (c *Controller) Previews() (map[string]PlaybackPreview, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur := c.current()
	if cur == nil {
		return nil, ErrNotInPlayback
	}
	prev := c.previous()
	changed := make(map[string]struct{})
	for _, id := range c.recordedChanges().LoanIDs() {
		changed[id] = struct{}{}
	}

	out := make(map[string]PlaybackPreview)
	for _, loanID := range c.visibleLoanIDs() {
		st, ok := cur.LoanByID(loanID)
		if !ok {
			continue
		}
		p := PlaybackPreview{
			LoanID:         st.LoanID,
			Currency:       st.Currency,
			EffectiveRate:  st.EffectiveRate,
			InterestAmount: st.InterestAmount,
			TotalFees:      st.TotalFees,
			NetProceeds:    st.NetProceeds,

			OriginalEffectiveRate:  st.EffectiveRate,
			OriginalInterestAmount: st.InterestAmount,
			OriginalTotalFees:      st.TotalFees,
			OriginalNetProceeds:    st.NetProceeds,
		}
		if prev != nil {
			if before, ok := prev.LoanByID(loanID); ok {
				p.OriginalEffectiveRate = before.EffectiveRate
				p.OriginalInterestAmount = before.InterestAmount
				p.OriginalTotalFees = before.TotalFees
				p.OriginalNetProceeds = before.NetProceeds
			}
		}
		_, p.Changed = changed[loanID]
		out[st.LoanID] = p
	}
	return out, nil
}
