package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

type WindowMode string

const (
	// CalendarWindow spans whole calendar days in Location; Days=1 means "today".
	CalendarWindow WindowMode = "calendar"
	// RollingWindow spans the last Days*24h up to the evaluation instant.
	RollingWindow WindowMode = "rolling"
)

// Window is a span of time anchored at an evaluation instant.
type Window struct {
	Mode     WindowMode
	Days     int
	Location *time.Location
}

func (w Window) days() int {
	if w.Days < 1 {
		return 1
	}
	return w.Days
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Bounds returns [start, end) for the window containing at. A zero end means open-ended.
func (w Window) Bounds(at time.Time) (start, end time.Time) {
	if w.Mode == RollingWindow {
		return at.Add(-time.Duration(w.days()) * 24 * time.Hour), time.Time{}
	}
	today := now.With(at.In(w.location())).BeginningOfDay()
	return today.AddDate(0, 0, -(w.days() - 1)), today.AddDate(0, 0, 1)
}

// Contains reports whether ts falls inside the window anchored at at.
func (w Window) Contains(ts, at time.Time) bool {
	start, end := w.Bounds(at)
	if ts.Before(start) {
		return false
	}
	return end.IsZero() || ts.Before(end)
}

// Policy holds the per-identity cooldown and the global per-window cap.
type Policy struct {
	Ledger       Ledger
	Cooldown     Window
	Cap          Window
	MaxPerWindow int64
	Clock        func() time.Time
}

func (p *Policy) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

// CapWindow returns the bounds of the current cap window.
func (p *Policy) CapWindow() (start, end time.Time) {
	return p.Cap.Bounds(p.now())
}

// ClaimsIssuedInCurrentWindow counts ClaimRecords inside the current cap window.
func (p *Policy) ClaimsIssuedInCurrentWindow(ctx context.Context) (int64, error) {
	start, end := p.Cap.Bounds(p.now())
	count, err := p.Ledger.CountInWindow(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("count claims in window: %w", err)
	}
	return count, nil
}

func (p *Policy) CapReached(ctx context.Context) (bool, error) {
	count, err := p.ClaimsIssuedInCurrentWindow(ctx)
	if err != nil {
		return false, err
	}
	return count >= p.MaxPerWindow, nil
}

// reserveRequest fills the window bounds and cap for an atomic reservation.
func (p *Policy) reserveRequest(at time.Time) ReserveRequest {
	cooldownStart, cooldownEnd := p.Cooldown.Bounds(at)
	capStart, capEnd := p.Cap.Bounds(at)
	return ReserveRequest{
		CooldownStart: cooldownStart,
		CooldownEnd:   cooldownEnd,
		CapStart:      capStart,
		CapEnd:        capEnd,
		MaxPerWindow:  p.MaxPerWindow,
	}
}
