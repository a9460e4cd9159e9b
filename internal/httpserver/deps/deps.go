package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// StoreStatus is the part of the bookmark store the probes need.
type StoreStatus interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS []string         // IPs allowed to access readyz/infra endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	ProbeTimeout time.Duration    // bound on each store check, defaults to 2s
	StoreDriver  string
	Store        StoreStatus
	Gateway      func() bool // Discord gateway connected
	Sessions     func() int  // live paginator sessions
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}

// Timeout returns the probe timeout.
func (d Deps) Timeout() time.Duration {
	if d.ProbeTimeout > 0 {
		return d.ProbeTimeout
	}
	return 2 * time.Second
}
