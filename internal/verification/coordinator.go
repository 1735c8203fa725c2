// Package verification runs the broker account checks that gate the funnel:
// registration under the referral link, then a minimum deposit.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
)

var (
	// ErrCheckInFlight indicates that a check for the same user is already running.
	ErrCheckInFlight = errors.New("verification check already in progress")
	// ErrInvalidUID indicates that the submitted broker id is malformed.
	ErrInvalidUID = errors.New("broker uid must be up to 15 digits")
	// ErrUIDClaimed indicates that another user already verified with this id.
	ErrUIDClaimed = errors.New("broker uid is already claimed")
)

const maxUIDLength = 15

// Coordinator serializes verification checks per user and records the
// outcomes in the registry. The in-flight table holds only the users with a
// check running; entries are removed as soon as the check returns.
type Coordinator struct {
	api      broker.API
	registry *registry.Registry
	log      *slog.Logger

	// BypassUIDs pass every check without calling the broker. Used for
	// operator test accounts.
	bypass map[string]struct{}

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewCoordinator constructs a verification coordinator.
func NewCoordinator(api broker.API, reg *registry.Registry, bypassUIDs []string, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}

	bypass := make(map[string]struct{}, len(bypassUIDs))
	for _, uid := range bypassUIDs {
		if uid != "" {
			bypass[uid] = struct{}{}
		}
	}

	return &Coordinator{
		api:      api,
		registry: reg,
		log:      log,
		bypass:   bypass,
		inFlight: make(map[int64]struct{}),
	}
}

// ValidateUID checks the shape of a submitted broker id.
func ValidateUID(uid string) error {
	if uid == "" || len(uid) > maxUIDLength {
		return ErrInvalidUID
	}
	for _, r := range uid {
		if r < '0' || r > '9' {
			return ErrInvalidUID
		}
	}
	return nil
}

// IsBypassUID reports whether the uid belongs to an operator test account.
func (c *Coordinator) IsBypassUID(uid string) bool {
	_, ok := c.bypass[uid]
	return ok
}

// CheckRegistration verifies that the broker account was opened under the
// referral link and records the result. Concurrent checks for the same user
// are rejected with ErrCheckInFlight.
func (c *Coordinator) CheckRegistration(ctx context.Context, userID int64, uid string) (bool, error) {
	if err := c.acquire(userID); err != nil {
		return false, err
	}
	defer c.release(userID)

	if c.IsBypassUID(uid) {
		// Operator test accounts pass the whole funnel in one step.
		c.log.Info("registration check bypassed", slog.Int64("user_id", userID))
		c.registry.SetBrokerUID(userID, uid)
		c.registry.SetRegistered(userID, true)
		c.registry.SetDeposit(userID, true)
		return true, nil
	}

	if ownerID, claimed := c.registry.FindByBrokerUID(uid); claimed && ownerID != userID {
		c.log.Warn("broker uid already claimed",
			slog.Int64("user_id", userID),
			slog.Int64("owner_id", ownerID))
		return false, ErrUIDClaimed
	}

	result, err := c.api.CheckRegistration(ctx, uid)
	if err != nil {
		c.log.Error("registration check failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return false, err
	}

	if result.OK {
		c.registry.SetBrokerUID(userID, uid)
		c.registry.SetRegistered(userID, true)
	}

	c.log.Info("registration check finished",
		slog.Int64("user_id", userID),
		slog.Bool("registered", result.OK))
	return result.OK, nil
}

// CheckDeposit verifies that the referral account holds at least minDeposit
// and records the result. Concurrent checks for the same user are rejected
// with ErrCheckInFlight.
func (c *Coordinator) CheckDeposit(ctx context.Context, userID int64, uid string, minDeposit float64) (bool, error) {
	if err := c.acquire(userID); err != nil {
		return false, err
	}
	defer c.release(userID)

	if c.IsBypassUID(uid) {
		c.log.Info("deposit check bypassed", slog.Int64("user_id", userID))
		c.registry.SetDeposit(userID, true)
		return true, nil
	}

	result, err := c.api.CheckDeposit(ctx, uid, minDeposit)
	if err != nil {
		c.log.Error("deposit check failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return false, err
	}

	if result.OK {
		c.registry.SetDeposit(userID, true)
	}

	c.log.Info("deposit check finished",
		slog.Int64("user_id", userID),
		slog.Bool("has_deposit", result.OK))
	return result.OK, nil
}

func (c *Coordinator) acquire(userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.inFlight[userID]; held {
		c.log.Warn("verification check already in flight", slog.Int64("user_id", userID))
		return ErrCheckInFlight
	}

	c.inFlight[userID] = struct{}{}
	return nil
}

func (c *Coordinator) release(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, userID)
}
