package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check describes one social verification and the value it settles on when the upstream is
// slower than its timeout.
type Check struct {
	Name      string
	OnTimeout bool
}

var (
	// FollowCheck fails open: a slow social graph must not block legitimate users.
	FollowCheck = Check{Name: "follow", OnTimeout: true}
	// EndorseCheck fails closed: a slow recast lookup must not grant a disbursement.
	EndorseCheck = Check{Name: "endorse", OnTimeout: false}
)

// VerificationOutcome is the result of one check. TimedOut means Satisfied is the fallback.
type VerificationOutcome struct {
	Satisfied bool
	TimedOut  bool
}

// FollowGraph answers whether follower follows followee.
type FollowGraph interface {
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)
}

// EndorsementGraph answers whether endorser recast the content published by author.
type EndorsementGraph interface {
	HasEndorsed(ctx context.Context, endorser, author, contentID string) (bool, error)
}

// SocialVerifier runs the follow and endorsement checks against the configured backends.
// Author is the identity that must be followed and whose content must be recast.
type SocialVerifier struct {
	Follows      FollowGraph
	Endorsements EndorsementGraph
	Author       string
	Logger       *slog.Logger
}

func NewSocialVerifier(follows FollowGraph, endorsements EndorsementGraph, author string, logger *slog.Logger) *SocialVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocialVerifier{Follows: follows, Endorsements: endorsements, Author: author, Logger: logger}
}

func (v *SocialVerifier) CheckFollows(ctx context.Context, identity string, timeout time.Duration) (VerificationOutcome, error) {
	return v.run(ctx, FollowCheck, identity, timeout, func(ctx context.Context) (bool, error) {
		return v.Follows.IsFollowing(ctx, identity, v.Author)
	})
}

func (v *SocialVerifier) CheckEndorsed(ctx context.Context, identity, contentID string, timeout time.Duration) (VerificationOutcome, error) {
	return v.run(ctx, EndorseCheck, identity, timeout, func(ctx context.Context) (bool, error) {
		return v.Endorsements.HasEndorsed(ctx, identity, v.Author, contentID)
	})
}

// Verify runs both checks concurrently and returns once both have settled.
func (v *SocialVerifier) Verify(ctx context.Context, identity, contentID string, followTimeout, endorseTimeout time.Duration) (follow, endorse VerificationOutcome, err error) {
	var g errgroup.Group
	g.Go(func() error {
		var err error
		follow, err = v.CheckFollows(ctx, identity, followTimeout)
		return err
	})
	g.Go(func() error {
		var err error
		endorse, err = v.CheckEndorsed(ctx, identity, contentID, endorseTimeout)
		return err
	})
	err = g.Wait()
	return follow, endorse, err
}

func (v *SocialVerifier) run(ctx context.Context, check Check, identity string, timeout time.Duration, op func(context.Context) (bool, error)) (VerificationOutcome, error) {
	satisfied, timedOut, err := FirstOf(ctx, timeout, check.OnTimeout, op)
	if err != nil {
		return VerificationOutcome{}, fmt.Errorf("%s check for %s: %w: %w", check.Name, identity, ErrUpstream, err)
	}
	if timedOut {
		v.Logger.Warn("verification timed out, using fallback",
			"event", "verification_timeout",
			"check", check.Name,
			"identity", identity,
			"fallback", check.OnTimeout,
			"timeout", timeout.String(),
		)
	}
	v.Logger.Debug("verification settled",
		"event", "verification_settled",
		"check", check.Name,
		"identity", identity,
		"satisfied", satisfied,
		"timed_out", timedOut,
	)
	return VerificationOutcome{Satisfied: satisfied, TimedOut: timedOut}, nil
}
