// Package health aggregates readiness checks for the bot's dependencies.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	log    *slog.Logger
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks[name] = check
}

// Check runs all registered health checks and returns their statuses.
func (c *Checker) Check(ctx context.Context) map[string]string {
	results := make(map[string]string, len(c.checks))

	for name, check := range c.checks {
		if check == nil {
			results[name] = "no check configured"
			continue
		}

		if err := check.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			if c.log != nil {
				c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
			}
			continue
		}

		results[name] = "OK"
	}

	return results
}

// StoreChecker verifies that the document file exists and is writable.
type StoreChecker struct {
	store *store.Store
}

// NewStoreChecker constructs a StoreChecker.
func NewStoreChecker(s *store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

// HealthCheck stats the backing file of the document store.
func (c *StoreChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("document store is not configured")
	}

	if _, err := os.Stat(c.store.Path()); err != nil {
		return fmt.Errorf("document file unavailable: %w", err)
	}
	return nil
}

// SessionProbe is the broker API slice needed for health checks.
type SessionProbe interface {
	IsConnectionAlive(ctx context.Context) bool
}

// BrokerChecker verifies that the partner API session is alive.
type BrokerChecker struct {
	probe SessionProbe
}

// NewBrokerChecker constructs a BrokerChecker.
func NewBrokerChecker(probe SessionProbe) *BrokerChecker {
	return &BrokerChecker{probe: probe}
}

// HealthCheck asks the partner API whether the session is usable.
func (c *BrokerChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.probe == nil {
		return errors.New("broker api is not configured")
	}
	if !c.probe.IsConnectionAlive(ctx) {
		return errors.New("broker session is dead")
	}
	return nil
}

// TelegramChecker verifies that the Telegram bot API is reachable.
type TelegramChecker struct {
	bot *telebot.Bot
}

// NewTelegramChecker constructs a TelegramChecker.
func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

// HealthCheck ensures the underlying bot is initialized and reachable.
func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized or disconnected")
	}
	return nil
}
