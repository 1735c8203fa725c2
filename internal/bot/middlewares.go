package bot

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/handlers"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/keyboard"
	apperrors "github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/errors"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := "⚠️ Something went wrong. Please try again later."
					if errHandler != nil {
						appErr := apperrors.NewStorageError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var appErr *apperrors.AppError
			if stdErrors.As(err, &appErr) && appErr != nil {
				metrics.RecordError(appErr.Code, string(appErr.Severity))
			} else {
				metrics.RecordError("unknown", string(apperrors.SeverityHigh))
			}

			userMsg := "Произошла ошибка. Попробуйте позже"
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := updateAction(c)

			log.Info("handling update", slog.Int64("user_id", userID), slog.String("action", action))
			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// MetricsMiddleware measures execution time and status for bot handlers.
func MetricsMiddleware(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordUpdate(handlerLabel(c), status, time.Since(start))

		return err
	}
}

// MaintenanceMiddleware blocks non-operator traffic while maintenance mode is
// on, replying with the configured notice.
func MaintenanceMiddleware(s *store.Store, isAdmin func(int64) bool) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			enabled, message := s.MaintenanceMode()
			if !enabled {
				return next(c)
			}

			if c != nil && c.Sender() != nil && isAdmin != nil && isAdmin(c.Sender().ID) {
				return next(c)
			}

			if c == nil {
				return nil
			}
			if cb := c.Callback(); cb != nil {
				return c.Respond(&telebot.CallbackResponse{Text: message, ShowAlert: true})
			}
			return c.Send(message)
		}
	}
}

// TouchMiddleware keeps the user record fresh on every update.
func TouchMiddleware(reg *registry.Registry) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if reg != nil && c != nil && c.Sender() != nil {
				sender := c.Sender()
				reg.Touch(sender.ID, sender.Username, "")
			}
			return next(c)
		}
	}
}

// updateAction describes the update for logs: the callback data or the text.
func updateAction(c telebot.Context) string {
	if c == nil {
		return ""
	}
	if cb := c.Callback(); cb != nil {
		return cb.Data
	}
	return c.Text()
}

// handlerLabel produces a low-cardinality metrics label: the callback unique
// or the command word.
func handlerLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		unique, _, err := keyboard.DecodeCallback(cb.Data)
		if err != nil {
			return "callback"
		}
		return unique
	}

	if text := c.Text(); text != "" {
		if text[0] == '/' {
			return commandWord(text)
		}
		return "text"
	}

	return "unknown"
}
