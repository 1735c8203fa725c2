package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/errors"
)

const defaultHTTPTimeout = 15 * time.Second

// ClientConfig configures the partner API client.
type ClientConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client is the HTTP implementation of API against the partner program
// endpoints. Referral checks go through a retry loop and a shared circuit
// breaker so a flaky upstream does not stall the funnel.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	log     *slog.Logger
	breaker *apperrors.CircuitBreaker
	signals *SignalGenerator
}

// NewClient constructs a partner API client.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
		breaker: apperrors.NewCircuitBreaker(),
		signals: NewSignalGenerator(),
	}
}

type referralResponse struct {
	Registered   bool    `json:"registered"`
	DepositTotal float64 `json:"deposit_total"`
}

type sessionResponse struct {
	Alive     bool      `json:"alive"`
	ExpiresAt time.Time `json:"expires_at"`
}

type quoteResponse struct {
	Price float64 `json:"price"`
}

// CheckRegistration reports whether the broker account was created under the
// partner referral link.
func (c *Client) CheckRegistration(ctx context.Context, uid string) (CheckResult, error) {
	var result CheckResult
	err := c.call(ctx, fmt.Sprintf("/v2/referrals/%s", uid), func(body []byte) error {
		var ref referralResponse
		if err := json.Unmarshal(body, &ref); err != nil {
			return err
		}
		result = CheckResult{OK: ref.Registered, Raw: string(body)}
		return nil
	})
	if err != nil {
		return CheckResult{}, err
	}
	return result, nil
}

// CheckDeposit reports whether the referral account holds at least minDeposit.
func (c *Client) CheckDeposit(ctx context.Context, uid string, minDeposit float64) (CheckResult, error) {
	var result CheckResult
	err := c.call(ctx, fmt.Sprintf("/v2/referrals/%s", uid), func(body []byte) error {
		var ref referralResponse
		if err := json.Unmarshal(body, &ref); err != nil {
			return err
		}
		result = CheckResult{OK: ref.Registered && ref.DepositTotal >= minDeposit, Raw: string(body)}
		return nil
	})
	if err != nil {
		return CheckResult{}, err
	}
	return result, nil
}

// IsConnectionAlive reports whether the API session is usable.
func (c *Client) IsConnectionAlive(ctx context.Context) bool {
	session, err := c.session(ctx)
	if err != nil {
		c.log.Warn("session probe failed", slog.Any("error", err))
		return false
	}
	return session.Alive
}

// ExpiryWarning returns a warning string when the session expires within
// daysThreshold days, or "" otherwise.
func (c *Client) ExpiryWarning(ctx context.Context, daysThreshold int) string {
	session, err := c.session(ctx)
	if err != nil || !session.Alive || session.ExpiresAt.IsZero() {
		return ""
	}

	remaining := time.Until(session.ExpiresAt)
	if remaining <= 0 || remaining > time.Duration(daysThreshold)*24*time.Hour {
		return ""
	}

	days := int(remaining.Hours() / 24)
	if days < 1 {
		return fmt.Sprintf("Сессия истекает менее чем через день (%s).", session.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("Сессия истекает через %d дн. (%s).", days, session.ExpiresAt.Format("2006-01-02 15:04"))
}

// AvailablePairs lists the tradable pairs of a market category.
func (c *Client) AvailablePairs(ctx context.Context, marketType string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs, ok := pairCatalog[marketType]
	if !ok {
		return nil, fmt.Errorf("unknown market type %q", marketType)
	}

	out := make([]string, len(pairs))
	copy(out, pairs)
	return out, nil
}

// GenerateSignal builds a trade recommendation from the current quote.
func (c *Client) GenerateSignal(ctx context.Context, marketType, asset string, expiration time.Duration) (*Signal, error) {
	if _, err := c.AvailablePairs(ctx, marketType); err != nil {
		return nil, err
	}

	var quote quoteResponse
	err := c.call(ctx, fmt.Sprintf("/v2/quotes/%s", asset), func(body []byte) error {
		return json.Unmarshal(body, &quote)
	})
	if err != nil {
		return nil, err
	}

	return c.signals.Generate(asset, quote.Price, expiration), nil
}

func (c *Client) session(ctx context.Context) (sessionResponse, error) {
	var session sessionResponse
	err := c.call(ctx, "/v2/session", func(body []byte) error {
		return json.Unmarshal(body, &session)
	})
	return session, err
}

// call performs an authenticated GET with retry and circuit breaking, handing
// the response body to decode.
func (c *Client) call(ctx context.Context, path string, decode func(body []byte) error) error {
	return apperrors.WithRetry(ctx, func() error {
		return c.breaker.Call(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
			if err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			if c.cfg.AuthToken != "" {
				req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return apperrors.NewExternalAPIError("partner", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return apperrors.NewExternalAPIError("partner", err)
			}

			if resp.StatusCode != http.StatusOK {
				c.log.Warn("partner api returned non-200",
					slog.String("path", path),
					slog.Int("status", resp.StatusCode))
				return apperrors.NewExternalAPIError("partner", fmt.Errorf("status %d", resp.StatusCode))
			}

			if err := decode(body); err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			return nil
		})
	})
}
