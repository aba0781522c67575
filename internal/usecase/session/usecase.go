package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/pricing"
	"pricing-workbench/internal/domain/snapshot"
	"pricing-workbench/internal/domain/uow"
	"pricing-workbench/internal/usecase/playback"
	"pricing-workbench/pkg/id"
)

const dateLayout = "2006-01-02"

// Usecase is one portfolio editing session: a ledger of staged edits, a
// preview calculator over the baseline, and the playback state machine. It
// is created when an operator opens a portfolio and torn down on navigation
// away. The ledger models a single local editor; the mutex only serializes
// HTTP requests onto that single-writer model.
type Usecase struct {
	portfolioID string

	mu       sync.Mutex
	ledger   *pricing.Ledger
	calc     *pricing.Calculator
	formula  pricing.Formula
	playback *playback.Controller

	loans   map[string]*loan.Loan
	order   []string
	configs map[string]*loan.FeeConfig

	uow   uow.UnitOfWork
	snaps snapshot.Repository
	log   *zap.Logger
	now   func() time.Time
}

func NewUsecase(
	portfolioID string,
	loans []*loan.Loan,
	configs []*loan.FeeConfig,
	tx uow.UnitOfWork,
	snaps snapshot.Repository,
	log *zap.Logger,
	now func() time.Time,
) *Usecase {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	lg := pricing.NewLedger()
	f := pricing.NewFormula(nil)
	u := &Usecase{
		portfolioID: portfolioID,
		ledger:      lg,
		calc:        pricing.NewCalculator(lg, f, now),
		formula:     f,
		playback:    playback.NewController(),
		loans:       make(map[string]*loan.Loan, len(loans)),
		configs:     make(map[string]*loan.FeeConfig, len(configs)),
		uow:         tx,
		snaps:       snaps,
		log:         log,
		now:         now,
	}
	for _, l := range loans {
		u.loans[l.LoanID] = l
		u.order = append(u.order, l.LoanID)
	}
	for _, c := range configs {
		u.configs[c.ConfigID] = c
	}
	return u
}

func (u *Usecase) PortfolioID() string { return u.portfolioID }

// Loans returns the baseline records in portfolio order.
func (u *Usecase) Loans() []*loan.Loan {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*loan.Loan, 0, len(u.order))
	for _, lid := range u.order {
		out = append(out, u.loans[lid])
	}
	return out
}

func (u *Usecase) guardMutable() error {
	if u.playback.InPlayback() {
		return pricing.ErrPlaybackReadOnly
	}
	return nil
}

// TrackField stages a field edit and returns the refreshed preview. The
// original value is captured from the baseline on first edit; later edits to
// the same field replace only the staged value.
func (u *Usecase) TrackField(in TrackFieldInput) (pricing.Preview, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return pricing.Preview{}, err
	}
	l, ok := u.loans[in.LoanID]
	if !ok {
		return pricing.Preview{}, loan.ErrNotFound
	}
	field, err := pricing.ParseField(in.Field)
	if err != nil {
		return pricing.Preview{}, err
	}
	value := in.Value
	if field.Kind() == pricing.KindRate {
		d, err := decimal.NewFromString(in.Value)
		if err != nil {
			return pricing.Preview{}, fmt.Errorf("%w: %q", ErrInvalidRate, in.Value)
		}
		value = d.String()
	}
	if field == pricing.FieldMaturityDate {
		if _, err := time.Parse(dateLayout, in.Value); err != nil {
			return pricing.Preview{}, fmt.Errorf("%w: %q", ErrInvalidDate, in.Value)
		}
	}
	u.ledger.TrackFieldChange(in.LoanID, field, in.Label, baselineValue(l, field), value)
	return u.calc.Calculate(l, u.ledger.RateInputs(in.LoanID)), nil
}

// TrackFeeAdd stages a catalogue fee onto a loan.
func (u *Usecase) TrackFeeAdd(loanID, configID string) (pricing.PendingFeeChange, pricing.Preview, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return pricing.PendingFeeChange{}, pricing.Preview{}, err
	}
	l, ok := u.loans[loanID]
	if !ok {
		return pricing.PendingFeeChange{}, pricing.Preview{}, loan.ErrNotFound
	}
	cfg, ok := u.configs[configID]
	if !ok {
		return pricing.PendingFeeChange{}, pricing.Preview{}, loan.ErrFeeConfigNotFound
	}
	entry := u.ledger.TrackFeeAdd(loanID, *cfg)
	return entry, u.calc.RecalculateForFeeChanges(l), nil
}

// TrackFeeUpdate stages an edit to an existing (or staged-add) fee.
func (u *Usecase) TrackFeeUpdate(loanID, feeID string, updates pricing.FeeUpdate) (pricing.Preview, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return pricing.Preview{}, err
	}
	l, ok := u.loans[loanID]
	if !ok {
		return pricing.Preview{}, loan.ErrNotFound
	}
	original, found := baselineFee(l, feeID)
	if !found && !hasPendingAdd(u.ledger, loanID, feeID) {
		return pricing.Preview{}, loan.ErrFeeNotFound
	}
	if err := u.ledger.TrackFeeUpdate(loanID, feeID, original, updates); err != nil {
		return pricing.Preview{}, err
	}
	return u.calc.RecalculateForFeeChanges(l), nil
}

// TrackFeeDelete stages removal of a fee; deleting a staged add cancels both.
func (u *Usecase) TrackFeeDelete(loanID, feeID string) (pricing.Preview, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return pricing.Preview{}, err
	}
	l, ok := u.loans[loanID]
	if !ok {
		return pricing.Preview{}, loan.ErrNotFound
	}
	var original *loan.Fee
	if fe, found := baselineFee(l, feeID); found {
		original = &fe
	}
	if err := u.ledger.TrackFeeDelete(loanID, feeID, original); err != nil {
		return pricing.Preview{}, err
	}
	return u.refreshOrDrop(l), nil
}

func (u *Usecase) RevertField(loanID, fieldName string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return err
	}
	field, err := pricing.ParseField(fieldName)
	if err != nil {
		return err
	}
	if err := u.ledger.RevertFieldChange(loanID, field); err != nil {
		return err
	}
	if l, ok := u.loans[loanID]; ok {
		u.refreshOrDrop(l)
	}
	return nil
}

func (u *Usecase) RevertFee(changeID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return err
	}
	// find the loan before the entry disappears
	var loanID string
	for _, e := range u.ledger.FeeChanges() {
		if e.ChangeID == changeID {
			loanID = e.LoanID
			break
		}
	}
	if err := u.ledger.RevertFeeChange(changeID); err != nil {
		return err
	}
	if l, ok := u.loans[loanID]; ok {
		u.refreshOrDrop(l)
	}
	return nil
}

func (u *Usecase) RevertLoan(loanID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return err
	}
	u.ledger.RevertAllForLoan(loanID)
	u.calc.Drop(loanID)
	return nil
}

func (u *Usecase) ClearAll() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return err
	}
	u.ledger.ClearAllChanges()
	u.calc.ClearAll()
	return nil
}

// refreshOrDrop recomputes a loan's preview, or drops it when the loan no
// longer has staged changes so a missing entry again means "baseline".
func (u *Usecase) refreshOrDrop(l *loan.Loan) pricing.Preview {
	if !u.ledger.HasChangesForLoan(l.LoanID) {
		u.calc.Drop(l.LoanID)
		return pricing.Preview{LoanID: l.LoanID, Currency: l.Currency}
	}
	return u.calc.RecalculateForFeeChanges(l)
}

// ---- query surface ----

func (u *Usecase) Previews() map[string]pricing.Preview {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calc.Previews()
}

func (u *Usecase) HasChangesForLoan(loanID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.HasChangesForLoan(loanID)
}

func (u *Usecase) IsFieldModified(loanID, fieldName string) bool {
	field, err := pricing.ParseField(fieldName)
	if err != nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.IsFieldModified(loanID, field)
}

func (u *Usecase) OriginalValue(loanID, fieldName string) (string, bool) {
	field, err := pricing.ParseField(fieldName)
	if err != nil {
		return "", false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.OriginalValue(loanID, field)
}

func (u *Usecase) IsFeeDeleted(loanID, feeID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.IsFeeDeleted(loanID, feeID)
}

func (u *Usecase) PendingChangeCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.Len()
}

func (u *Usecase) FieldChanges() []pricing.PendingFieldChange {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.FieldChanges()
}

func (u *Usecase) FeeChanges() []pricing.PendingFeeChange {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.FeeChanges()
}

// ---- save pipeline ----

// BuildSnapshotChanges converts the staged ledger into the recorded
// change-set that will be persisted alongside the snapshot. This is the
// authoritative "what changed" list; it is recorded, not recomputed.
func (u *Usecase) BuildSnapshotChanges() snapshot.Changes {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.buildChangesLocked()
}

func (u *Usecase) buildChangesLocked() snapshot.Changes {
	var ch snapshot.Changes
	for _, fc := range u.ledger.FieldChanges() {
		switch fc.Field {
		case pricing.FieldBaseRate, pricing.FieldSpread:
			before, _ := decimal.NewFromString(fc.Original)
			after, _ := decimal.NewFromString(fc.Value)
			if before.Equal(after) {
				continue // edited back to baseline, nothing really changed
			}
			ch.Rates = append(ch.Rates, snapshot.RateChange{
				LoanID: fc.LoanID,
				Field:  fc.Field.String(),
				Before: before,
				After:  after,
			})
		case pricing.FieldStatus, pricing.FieldPricingStatus:
			if fc.Original == fc.Value {
				continue
			}
			ch.Statuses = append(ch.Statuses, snapshot.StatusChange{
				LoanID: fc.LoanID,
				Field:  fc.Field.String(),
				Before: fc.Original,
				After:  fc.Value,
			})
		}
	}
	for _, e := range u.ledger.FeeChanges() {
		l := u.loans[e.LoanID]
		if l == nil {
			continue
		}
		switch e.Type {
		case pricing.FeeChangeAdd:
			fe := u.stagedAddFee(l, e)
			ch.Fees = append(ch.Fees, snapshot.FeeChange{
				Kind:   snapshot.FeeAdded,
				LoanID: e.LoanID,
				FeeID:  e.FeeID,
				Name:   e.FeeName,
				After:  fe.Amount,
			})
		case pricing.FeeChangeUpdate:
			after := e.Updates.ApplyTo(*e.OriginalFee)
			after.Amount = u.formula.RecomputeFeeAmount(after, l.Principal)
			ch.Fees = append(ch.Fees, snapshot.FeeChange{
				Kind:   snapshot.FeeModified,
				LoanID: e.LoanID,
				FeeID:  e.FeeID,
				Name:   e.FeeName,
				Before: e.OriginalFee.Amount,
				After:  after.Amount,
			})
		case pricing.FeeChangeDelete:
			ch.Fees = append(ch.Fees, snapshot.FeeChange{
				Kind:   snapshot.FeeDeleted,
				LoanID: e.LoanID,
				FeeID:  e.FeeID,
				Name:   e.FeeName,
				Before: e.OriginalFee.Amount,
			})
		}
	}
	return ch
}

func (u *Usecase) stagedAddFee(l *loan.Loan, e pricing.PendingFeeChange) loan.Fee {
	fe := loan.Fee{
		FeeID:      e.FeeID,
		ConfigID:   e.Config.ConfigID,
		Name:       e.Config.Name,
		CalcType:   e.Config.CalcType,
		Rate:       u.formula.ResolveRate(e.Config, l.Principal),
		FlatAmount: e.Config.FlatAmount,
		Amount:     u.formula.FeeAmount(e.Config, l.Principal),
		LoanRef:    l.ID,
	}
	fe = e.Updates.ApplyTo(fe)
	if !fe.Overridden {
		fe.Amount = u.formula.RecomputeFeeAmount(fe, l.Principal)
	}
	return fe
}

// Save commits every staged edit and the snapshot in one transaction, then
// clears the ledger and the preview cache. The snapshot records the staged
// change list, a per-currency summary of the whole portfolio, and the delta
// against the previous snapshot when one exists.
func (u *Usecase) Save(ctx context.Context, in SaveInput) (*SnapshotDTO, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.guardMutable(); err != nil {
		return nil, err
	}
	if u.ledger.Len() == 0 {
		return nil, ErrNoPendingChanges
	}

	changes := u.buildChangesLocked()
	asOf := u.now()

	// Apply staged edits to copies; baselines swap only after commit.
	updated := make(map[string]*loan.Loan, len(u.loans))
	for lid, l := range u.loans {
		cp := *l
		cp.Fees = append([]loan.Fee(nil), l.Fees...)
		cp.Invoices = append([]loan.Invoice(nil), l.Invoices...)
		updated[lid] = &cp
	}
	for _, fc := range u.ledger.FieldChanges() {
		if l := updated[fc.LoanID]; l != nil {
			applyFieldChange(l, fc)
		}
	}
	feeOps := u.ledger.FeeChanges()
	for _, e := range feeOps {
		l := updated[e.LoanID]
		if l == nil {
			continue
		}
		switch e.Type {
		case pricing.FeeChangeAdd:
			l.Fees = append(l.Fees, u.stagedAddFee(l, e))
		case pricing.FeeChangeUpdate:
			for i := range l.Fees {
				if l.Fees[i].FeeID == e.FeeID {
					l.Fees[i] = e.Updates.ApplyTo(l.Fees[i])
					l.Fees[i].Amount = u.formula.RecomputeFeeAmount(l.Fees[i], l.Principal)
				}
			}
		case pricing.FeeChangeDelete:
			kept := l.Fees[:0]
			for _, fe := range l.Fees {
				if fe.FeeID != e.FeeID {
					kept = append(kept, fe)
				}
			}
			l.Fees = kept
		}
	}

	states := make([]snapshot.LoanState, 0, len(u.order))
	for _, lid := range u.order {
		states = append(states, snapshot.CaptureLoan(updated[lid], u.formula, asOf))
	}

	snap := &snapshot.Snapshot{
		SnapshotID:  id.NewID32(),
		PortfolioID: u.portfolioID,
		UserName:    in.UserName,
		Description: in.Description,
		CreatedAt:   asOf,
		ChangeCount: changes.Count(),
		Loans:       states,
		Changes:     changes,
		Summary:     snapshot.Summarize(states),
	}

	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		prev, err := r.Snapshots.LatestByPortfolio(ctx, u.portfolioID)
		switch {
		case err == nil:
			snap.Delta = snapshot.Deltas(prev, snap, changes)
		case errors.Is(err, snapshot.ErrNotFound):
			// first save for this portfolio
		default:
			return err
		}

		for _, lid := range u.order {
			if !u.ledger.HasChangesForLoan(lid) {
				continue
			}
			if err := r.Loans.Save(ctx, updated[lid]); err != nil {
				return fmt.Errorf("save loan %s: %w", lid, err)
			}
		}
		for _, e := range feeOps {
			l := updated[e.LoanID]
			if l == nil {
				continue
			}
			switch e.Type {
			case pricing.FeeChangeAdd:
				fe := u.stagedAddFee(l, e)
				if err := r.Loans.AddFee(ctx, &fe); err != nil {
					return fmt.Errorf("add fee %s: %w", e.FeeID, err)
				}
			case pricing.FeeChangeUpdate:
				for i := range l.Fees {
					if l.Fees[i].FeeID == e.FeeID {
						fe := l.Fees[i]
						if err := r.Loans.SaveFee(ctx, &fe); err != nil {
							return fmt.Errorf("save fee %s: %w", e.FeeID, err)
						}
					}
				}
			case pricing.FeeChangeDelete:
				if err := r.Loans.DeleteFee(ctx, e.FeeID); err != nil {
					return fmt.Errorf("delete fee %s: %w", e.FeeID, err)
				}
			}
		}
		return r.Snapshots.Create(ctx, snap)
	})
	if err != nil {
		return nil, err
	}

	// Commit succeeded: swap baselines, clear the workspace.
	u.loans = updated
	u.ledger.ClearAllChanges()
	u.calc.ClearAll()
	u.log.Info("portfolio snapshot saved",
		zap.String("portfolio_id", u.portfolioID),
		zap.String("snapshot_id", snap.SnapshotID),
		zap.Int("change_count", snap.ChangeCount),
	)
	return toSnapshotDTO(snap), nil
}

// ---- playback ----

// ListSnapshots returns the portfolio's history oldest first.
func (u *Usecase) ListSnapshots(ctx context.Context) ([]*SnapshotDTO, error) {
	list, err := u.snaps.ListByPortfolio(ctx, u.portfolioID)
	if err != nil {
		return nil, err
	}
	out := make([]*SnapshotDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toSnapshotDTO(s))
	}
	return out, nil
}

// EnterPlayback loads the portfolio history and anchors the controller on
// the requested snapshot. Editing stays staged but locked until exit.
func (u *Usecase) EnterPlayback(ctx context.Context, snapshotID string) error {
	list, err := u.snaps.ListByPortfolio(ctx, u.portfolioID)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.playback.Enter(snapshotID, list)
}

func (u *Usecase) ExitPlayback() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.playback.Exit()
}

func (u *Usecase) Playback() *playback.Controller {
	return u.playback
}

func (u *Usecase) PlaybackPrevious() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.playback.GoToPrevious()
}

func (u *Usecase) PlaybackNext() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.playback.GoToNext()
}

// ---- helpers ----

func baselineValue(l *loan.Loan, f pricing.Field) string {
	switch f {
	case pricing.FieldBaseRate:
		return l.BaseRate.String()
	case pricing.FieldSpread:
		return l.Spread.String()
	case pricing.FieldStatus:
		return string(l.Status)
	case pricing.FieldPricingStatus:
		return string(l.PricingStatus)
	case pricing.FieldMaturityDate:
		return l.MaturityDate.Format(dateLayout)
	}
	return ""
}

func applyFieldChange(l *loan.Loan, fc pricing.PendingFieldChange) {
	switch fc.Field {
	case pricing.FieldBaseRate:
		if d, err := decimal.NewFromString(fc.Value); err == nil {
			l.BaseRate = d
		}
	case pricing.FieldSpread:
		if d, err := decimal.NewFromString(fc.Value); err == nil {
			l.Spread = d
		}
	case pricing.FieldStatus:
		l.Status = loan.Status(fc.Value)
	case pricing.FieldPricingStatus:
		l.PricingStatus = loan.PricingStatus(fc.Value)
	case pricing.FieldMaturityDate:
		if t, err := time.Parse(dateLayout, fc.Value); err == nil {
			l.MaturityDate = t
		}
	}
}

func baselineFee(l *loan.Loan, feeID string) (loan.Fee, bool) {
	for _, fe := range l.Fees {
		if fe.FeeID == feeID {
			return fe, true
		}
	}
	return loan.Fee{}, false
}

func hasPendingAdd(lg *pricing.Ledger, loanID, feeID string) bool {
	for _, e := range lg.PendingFeeAdds(loanID) {
		if e.FeeID == feeID {
			return true
		}
	}
	return false
}
