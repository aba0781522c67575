package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pricing-workbench/internal/domain/pricing"
	"pricing-workbench/internal/infrastructure/cache"
	"pricing-workbench/internal/usecase/session"
)

// SessionHandler exposes the live editing surface: staging edits, previewing
// them, reverting, and committing the batch as a snapshot. Every route is
// scoped to one portfolio session.
type SessionHandler struct {
	mgr   *session.Manager
	snaps *cache.SnapshotCache
}

func NewSessionHandler(mgr *session.Manager, snaps *cache.SnapshotCache) *SessionHandler {
	return &SessionHandler{mgr: mgr, snaps: snaps}
}

type trackFieldReq struct {
	LoanID string `json:"loan_id" validate:"required,hex32"`
	Field  string `json:"field" validate:"required"`
	Label  string `json:"label"`
	Value  string `json:"value" validate:"required"`
}

type feeChangeReq struct {
	Action      string            `json:"action" validate:"required,oneof=add update delete"`
	LoanID      string            `json:"loan_id" validate:"required,hex32"`
	FeeConfigID string            `json:"fee_config_id,omitempty"`
	FeeID       string            `json:"fee_id,omitempty"`
	Updates     pricing.FeeUpdate `json:"updates,omitempty"`
}

type revertReq struct {
	Scope    string `json:"scope" validate:"required,oneof=field fee loan all"`
	LoanID   string `json:"loan_id,omitempty"`
	Field    string `json:"field,omitempty"`
	ChangeID string `json:"change_id,omitempty"`
}

type saveReq struct {
	UserName    string `json:"user_name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

// GetLoans returns the baseline records plus any staged previews so the grid
// can render edited rows inline.
func (h *SessionHandler) GetLoans(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"portfolio_id": s.PortfolioID(),
		"loans":        s.Loans(),
		"previews":     s.Previews(),
	})
}

func (h *SessionHandler) TrackField(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	var req trackFieldReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	preview, err := s.TrackField(session.TrackFieldInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"preview":              preview,
		"pending_change_count": s.PendingChangeCount(),
	})
}

func (h *SessionHandler) TrackFee(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	var req feeChangeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	switch req.Action {
	case "add":
		if req.FeeConfigID == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fee_config_id is required for add"})
		}
		entry, preview, err := s.TrackFeeAdd(req.LoanID, req.FeeConfigID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]any{
			"change":               entry,
			"preview":              preview,
			"pending_change_count": s.PendingChangeCount(),
		})
	case "update":
		if req.FeeID == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fee_id is required for update"})
		}
		preview, err := s.TrackFeeUpdate(req.LoanID, req.FeeID, req.Updates)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"preview":              preview,
			"pending_change_count": s.PendingChangeCount(),
		})
	default: // delete
		if req.FeeID == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fee_id is required for delete"})
		}
		preview, err := s.TrackFeeDelete(req.LoanID, req.FeeID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"preview":              preview,
			"pending_change_count": s.PendingChangeCount(),
		})
	}
}

func (h *SessionHandler) Revert(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	var req revertReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	switch req.Scope {
	case "field":
		err = s.RevertField(req.LoanID, req.Field)
	case "fee":
		err = s.RevertFee(req.ChangeID)
	case "loan":
		err = s.RevertLoan(req.LoanID)
	case "all":
		err = s.ClearAll()
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"pending_change_count": s.PendingChangeCount(),
	})
}

// GetPreview returns every staged change and the per-loan previews without
// touching persistence.
func (h *SessionHandler) GetPreview(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"previews":             s.Previews(),
		"field_changes":        s.FieldChanges(),
		"fee_changes":          s.FeeChanges(),
		"pending_change_count": s.PendingChangeCount(),
	})
}

// Save commits the staged batch as one snapshot. Sits behind the idempotency
// middleware so a retried request replays the stored response.
func (h *SessionHandler) Save(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	var req saveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	dto, err := s.Save(c.Request().Context(), session.SaveInput(req))
	if err != nil {
		return writeError(c, err)
	}
	// a new snapshot makes the cached history stale
	_ = h.snaps.Invalidate(c.Request().Context(), s.PortfolioID())
	return c.JSON(http.StatusCreated, dto)
}

// CloseSession discards the portfolio session with any unsaved edits.
func (h *SessionHandler) CloseSession(c echo.Context) error {
	h.mgr.Close(c.Param("portfolio_id"))
	return c.NoContent(http.StatusNoContent)
}
