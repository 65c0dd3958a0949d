package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Func is the evaluation body of a probe. A nil error means Healthy.
type Func func(ctx context.Context) error

// DBPinger captures the subset of *sql.DB used for readiness checks.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// MongoPinger captures the subset of the MongoDB client used for readiness checks.
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// HTTPDoer represents the subset of *http.Client required by the HTTP probe helper.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AlwaysHealthy returns a probe whose evaluation never fails.
func AlwaysHealthy(name string, tags ...Tag) Probe {
	return newProbe(name, func(context.Context) error { return nil }, tags)
}

// NewPingProbe wraps fn with standardised error reporting.
func NewPingProbe(name string, fn Func, tags ...Tag) Probe {
	return newProbe(name, func(ctx context.Context) error {
		if fn == nil {
			return nilComponentError(name, "ping function")
		}
		if err := fn(contextOrBackground(ctx)); err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		return nil
	}, tags)
}

// NewDBPingProbe pings a database such as the token cache behind database/sql.
func NewDBPingProbe(name string, db DBPinger, tags ...Tag) Probe {
	return newProbe(name, func(ctx context.Context) error {
		if db == nil {
			return nilComponentError(name, "db client")
		}
		if err := db.PingContext(contextOrBackground(ctx)); err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		return nil
	}, tags)
}

// NewMongoPingProbe pings MongoDB. A nil readPref defaults to readpref.Primary.
func NewMongoPingProbe(name string, client MongoPinger, readPref *readpref.ReadPref, tags ...Tag) Probe {
	return newProbe(name, func(ctx context.Context) error {
		if client == nil {
			return errors.New("mongo probe: client is nil")
		}

		rp := readPref
		if rp == nil {
			rp = readpref.Primary()
		}

		if err := client.Ping(contextOrBackground(ctx), rp); err != nil {
			return fmt.Errorf("mongo probe failed: %w", err)
		}
		return nil
	}, tags)
}
