package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-workbench/internal/domain/snapshot"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func state(loanID, rate, net string) snapshot.LoanState {
	return snapshot.LoanState{
		LoanID:        loanID,
		Currency:      "USD",
		Principal:     d("100000"),
		BaseRate:      d(rate), // spread zero, so effective == base
		EffectiveRate: d(rate),
		NetProceeds:   d(net),
	}
}

// history returns three snapshots: s1 baseline, s2 edits loan-1, s3 edits loan-2.
func history() []*snapshot.Snapshot {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s1 := &snapshot.Snapshot{
		SnapshotID: "s1", PortfolioID: "pf-1", CreatedAt: base,
		Loans: []snapshot.LoanState{state("loan-1", "0.07", "92500"), state("loan-2", "0.06", "94000")},
	}
	s2 := &snapshot.Snapshot{
		SnapshotID: "s2", PortfolioID: "pf-1", CreatedAt: base.Add(time.Hour),
		Loans: []snapshot.LoanState{state("loan-1", "0.08", "91500"), state("loan-2", "0.06", "94000")},
		Changes: snapshot.Changes{Rates: []snapshot.RateChange{
			{LoanID: "loan-1", Field: "base_rate", Before: d("0.05"), After: d("0.06")},
		}},
		ChangeCount: 1,
	}
	s3 := &snapshot.Snapshot{
		SnapshotID: "s3", PortfolioID: "pf-1", CreatedAt: base.Add(2 * time.Hour),
		Loans: []snapshot.LoanState{state("loan-1", "0.08", "91500"), state("loan-2", "0.065", "93500")},
		Changes: snapshot.Changes{Rates: []snapshot.RateChange{
			{LoanID: "loan-2", Field: "spread", Before: d("0.01"), After: d("0.015")},
		}},
		ChangeCount: 1,
	}
	return []*snapshot.Snapshot{s1, s2, s3}
}

func TestEnter_AnchorsOnSnapshot(t *testing.T) {
	c := NewController()
	assert.Equal(t, ModeLive, c.Mode())
	assert.Nil(t, c.Current())

	require.NoError(t, c.Enter("s2", history()))
	assert.Equal(t, ModePlayback, c.Mode())
	assert.Equal(t, "s2", c.Current().SnapshotID)
	assert.True(t, c.HasPrevious())
	assert.True(t, c.HasNext())
}

func TestEnter_UnknownSnapshot(t *testing.T) {
	c := NewController()
	err := c.Enter("nope", history())
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
	assert.Equal(t, ModeLive, c.Mode(), "failed enter leaves live mode intact")
}

func TestEnter_EmptyHistory(t *testing.T) {
	c := NewController()
	assert.ErrorIs(t, c.Enter("s1", nil), ErrEmptyHistory)
}

func TestEnter_ReanchorsWhileInPlayback(t *testing.T) {
	c := NewController()
	h := history()
	require.NoError(t, c.Enter("s1", h))
	require.NoError(t, c.Enter("s3", h))
	assert.Equal(t, "s3", c.Current().SnapshotID)
}

func TestNavigation_ClampsAtBothEnds(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s1", history()))

	assert.False(t, c.GoToPrevious(), "already at oldest")
	assert.Equal(t, "s1", c.Current().SnapshotID)

	assert.True(t, c.GoToNext())
	assert.True(t, c.GoToNext())
	assert.Equal(t, "s3", c.Current().SnapshotID)
	assert.False(t, c.GoToNext(), "already at newest")
	assert.Equal(t, "s3", c.Current().SnapshotID)

	assert.True(t, c.GoToPrevious())
	assert.Equal(t, "s2", c.Current().SnapshotID)
}

func TestExit_ResetsEverything(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s2", history()))
	c.SetChangedOnly(true)

	c.Exit()
	assert.Equal(t, ModeLive, c.Mode())
	assert.Nil(t, c.Current())
	assert.False(t, c.ChangedOnly())
	assert.False(t, c.HasPrevious())
	assert.False(t, c.HasNext())
}

func TestRecordedChanges_AreTheSavedList(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s2", history()))
	ch := c.RecordedChanges()
	require.Len(t, ch.Rates, 1)
	assert.Equal(t, "loan-1", ch.Rates[0].LoanID)
}

func TestComputedDiff_EmptyAtOldestSnapshot(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s1", history()))
	assert.True(t, c.ComputedDiff().Empty())
	assert.Nil(t, c.Deltas())
}

func TestComputedDiff_DerivedFromPair(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s3", history()))
	diff := c.ComputedDiff()
	require.NotEmpty(t, diff.Rates)
	for _, rc := range diff.Rates {
		assert.Equal(t, "loan-2", rc.LoanID, "only loan-2 moved between s2 and s3")
	}
}

func TestVisibleLoanIDs_ChangedOnlyUsesRecordedList(t *testing.T) {
	// Recorded changes name loan-1 even though the stored figures of loan-2
	// also differ between the pair; the filter must trust the record.
	h := history()
	h[2].Changes = snapshot.Changes{Rates: []snapshot.RateChange{{LoanID: "loan-1"}}}

	c := NewController()
	require.NoError(t, c.Enter("s3", h))

	all := c.VisibleLoanIDs()
	assert.ElementsMatch(t, []string{"loan-1", "loan-2"}, all)

	c.SetChangedOnly(true)
	assert.Equal(t, []string{"loan-1"}, c.VisibleLoanIDs())
}

func TestPreviews_OriginalsComeFromPreviousSnapshot(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s2", history()))

	views, err := c.Previews()
	require.NoError(t, err)
	require.Len(t, views, 2)

	p1 := views["loan-1"]
	assert.True(t, p1.EffectiveRate.Equal(d("0.08")))
	assert.True(t, p1.OriginalEffectiveRate.Equal(d("0.07")), "original read from s1")
	assert.True(t, p1.Changed)

	p2 := views["loan-2"]
	assert.True(t, p2.EffectiveRate.Equal(p2.OriginalEffectiveRate), "untouched loan shows no drift")
	assert.False(t, p2.Changed)
}

func TestPreviews_OldestSnapshotSelfOriginals(t *testing.T) {
	c := NewController()
	require.NoError(t, c.Enter("s1", history()))

	views, err := c.Previews()
	require.NoError(t, err)
	p := views["loan-1"]
	assert.True(t, p.OriginalEffectiveRate.Equal(p.EffectiveRate), "no previous snapshot, originals mirror current")
}

func TestPreviews_OutsidePlayback(t *testing.T) {
	c := NewController()
	_, err := c.Previews()
	assert.ErrorIs(t, err, ErrNotInPlayback)
}

// Handlers hold the controller across several calls while other requests
// navigate or exit; every interleaving must stay safe.
func TestController_ConcurrentViewsDuringExit(t *testing.T) {
	c := NewController()
	h := history()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = c.Enter("s2", h)
			c.GoToNext()
			c.GoToPrevious()
			c.Exit()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.SetChangedOnly(i%2 == 0)
			if cur := c.Current(); cur != nil {
				_ = cur.SnapshotID
			}
			_, _ = c.Previews()
			_ = c.ComputedDiff()
			_ = c.VisibleLoanIDs()
			_ = c.Deltas()
			_ = c.HasPrevious()
			_ = c.HasNext()
		}
	}()
	wg.Wait()

	c.Exit()
	assert.Equal(t, ModeLive, c.Mode())
	assert.False(t, c.ChangedOnly())
}
