package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pricing-workbench/internal/infrastructure/cache"
	"pricing-workbench/internal/usecase/playback"
	"pricing-workbench/internal/usecase/session"
)

// PlaybackHandler serves snapshot history and the read-only playback view.
// The history list is cached in redis per portfolio; the playback cursor
// itself lives in the session and is never cached.
type PlaybackHandler struct {
	mgr   *session.Manager
	snaps *cache.SnapshotCache
}

func NewPlaybackHandler(mgr *session.Manager, snaps *cache.SnapshotCache) *PlaybackHandler {
	return &PlaybackHandler{mgr: mgr, snaps: snaps}
}

type enterPlaybackReq struct {
	SnapshotID string `json:"snapshot_id" validate:"required,hex32"`
}

// ListSnapshots returns the portfolio's history oldest first.
func (h *PlaybackHandler) ListSnapshots(c echo.Context) error {
	ctx := c.Request().Context()
	portfolioID := c.Param("portfolio_id")

	var cached []*session.SnapshotDTO
	if h.snaps.Get(ctx, portfolioID, &cached) {
		return c.JSON(http.StatusOK, map[string]any{"snapshots": cached, "cached": true})
	}

	s, err := h.mgr.Get(ctx, portfolioID)
	if err != nil {
		return writeError(c, err)
	}
	list, err := s.ListSnapshots(ctx)
	if err != nil {
		return writeError(c, err)
	}
	_ = h.snaps.Set(ctx, portfolioID, list)
	return c.JSON(http.StatusOK, map[string]any{"snapshots": list, "cached": false})
}

func (h *PlaybackHandler) Enter(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	var req enterPlaybackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	if err := s.EnterPlayback(c.Request().Context(), req.SnapshotID); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s)
}

func (h *PlaybackHandler) Exit(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	s.ExitPlayback()
	return c.JSON(http.StatusOK, map[string]any{"mode": playback.ModeLive})
}

func (h *PlaybackHandler) Previous(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	if !s.Playback().InPlayback() {
		return writeError(c, playback.ErrNotInPlayback)
	}
	s.PlaybackPrevious()
	return h.view(c, s)
}

func (h *PlaybackHandler) Next(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	if !s.Playback().InPlayback() {
		return writeError(c, playback.ErrNotInPlayback)
	}
	s.PlaybackNext()
	return h.view(c, s)
}

// View renders the current playback position; ?changed_only=true narrows the
// grid to loans in the recorded change list.
func (h *PlaybackHandler) View(c echo.Context) error {
	s, err := h.mgr.Get(c.Request().Context(), c.Param("portfolio_id"))
	if err != nil {
		return writeError(c, err)
	}
	if !s.Playback().InPlayback() {
		return writeError(c, playback.ErrNotInPlayback)
	}
	if v := c.QueryParam("changed_only"); v != "" {
		s.Playback().SetChangedOnly(v == "true" || v == "1")
	}
	return h.view(c, s)
}

func (h *PlaybackHandler) view(c echo.Context, s *session.Usecase) error {
	pb := s.Playback()
	cur := pb.Current()
	if cur == nil {
		return writeError(c, playback.ErrNotInPlayback)
	}
	previews, err := pb.Previews()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"mode":             pb.Mode(),
		"snapshot_id":      cur.SnapshotID,
		"created_at":       cur.CreatedAt,
		"user_name":        cur.UserName,
		"description":      cur.Description,
		"has_previous":     pb.HasPrevious(),
		"has_next":         pb.HasNext(),
		"changed_only":     pb.ChangedOnly(),
		"visible_loan_ids": pb.VisibleLoanIDs(),
		"previews":         previews,
		"recorded_changes": pb.RecordedChanges(),
		"computed_diff":    pb.ComputedDiff(),
		"deltas":           pb.Deltas(),
	})
}
