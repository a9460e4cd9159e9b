package bot

import (
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// HandlerFunc handles one interaction. A returned error is logged; the
// member-facing answer is the handler's job.
type HandlerFunc func(e *Event) error

// Middleware wraps a handler. A middleware that denies answers the
// member itself and does not call next.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain applies mws so that the first one runs first.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

const msgInternalError = "Something went wrong on our end. Please try again later!"

// Recover turns a handler panic into a logged error and a generic answer.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(e *Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					e.Log.Error("handler panic",
						logger.String("command", e.Command),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())))
					if !e.Answered() || e.deferred {
						_ = e.Deny(msgInternalError)
					}
					err = fmt.Errorf("panic in %s: %v", e.Command, r)
				}
			}()
			return next(e)
		}
	}
}

// Log writes one line per interaction.
func Log() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(e *Event) error {
			start := time.Now()
			err := next(e)

			fields := []logger.Field{
				logger.String("command", e.Command),
				logger.String("guild_id", e.Interaction.GuildID),
				logger.String("user_id", e.UserID()),
				logger.Duration("duration", time.Since(start)),
			}
			if err != nil {
				e.Log.Error("interaction failed", append(fields, logger.Error(err))...)
				return err
			}
			e.Log.Info("interaction", fields...)
			return nil
		}
	}
}

// GuildOnly denies interactions outside a guild.
func GuildOnly() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(e *Event) error {
			if e.Interaction.GuildID == "" {
				return e.Deny("This command can only be used in a server.")
			}
			return next(e)
		}
	}
}

// RequirePermission denies members lacking perm. Administrators always pass.
func RequirePermission(perm int64, name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(e *Event) error {
			m := e.Interaction.Member
			if m == nil || m.Permissions&(perm|discordgo.PermissionAdministrator) == 0 {
				e.Log.Debug("permission denied",
					logger.String("command", e.Command),
					logger.String("user_id", e.UserID()),
					logger.String("permission", name))
				return e.Deny(fmt.Sprintf("You need the **%s** permission to use this command.", name))
			}
			return next(e)
		}
	}
}

// WithCooldown denies members that used up c.
func WithCooldown(c *Cooldown, now func() time.Time) Middleware {
	if now == nil {
		now = time.Now
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(e *Event) error {
			ok, retry := c.Allow(e.UserID(), now())
			if !ok {
				secs := int(math.Ceil(retry.Seconds()))
				e.Log.Debug("cooldown hit",
					logger.String("cooldown", c.Name()),
					logger.String("user_id", e.UserID()),
					logger.Duration("retry_after", retry))
				return e.Deny(fmt.Sprintf("Slow down! You can use this command again in %ds.", secs))
			}
			return next(e)
		}
	}
}
