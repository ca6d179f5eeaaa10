package stream

import (
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/internal/codec"
	"github.com/taskboard/taskboard.go/pkg/logger"
	"github.com/taskboard/taskboard.go/pkg/snapshot"
)

// Config carries everything a Subscription needs to connect and decode a
// patch stream.
type Config struct {
	// URL is the full WebSocket endpoint of the stream, typically built
	// with StreamURL.
	URL url.URL

	// Marshaler encodes outbound messages. Only needed on streams that
	// accept input, such as terminal attachments.
	Marshaler codec.Marshaler

	// Unmarshaler decodes inbound envelopes.
	Unmarshaler codec.Unmarshaler

	// Logger receives lifecycle and decode diagnostics.
	Logger logger.Logger

	// Retryer schedules reconnect attempts. Defaults to
	// NewExponentialBackoffRetryer.
	Retryer Retryer

	// Factory seeds the snapshot document right before the first patch
	// batch applies. Leave nil on streams that carry no document, such as
	// raw log streams consumed line by line.
	Factory snapshot.Factory

	// DialTimeout bounds each dial attempt. Zero means no bound beyond
	// the subscription context.
	DialTimeout time.Duration
}

// NewConfig creates a Config for the given stream endpoint with the
// default JSON codec, logger and retry schedule. It is not absolutely
// necessary to build a Config through this function, but it ensures
// everything needed for the connection is set up correctly.
func NewConfig(u *url.URL) *Config {
	c := boardjson.New()
	return &Config{
		URL:         *u,
		Marshaler:   c,
		Unmarshaler: c,
		Logger:      logger.New(slog.NewTextHandler(os.Stdout, nil)),
		Retryer:     NewExponentialBackoffRetryer(),
		DialTimeout: 10 * time.Second,
	}
}
