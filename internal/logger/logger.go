package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Setup(dev bool) zerolog.Logger {
	return SetupWriter(os.Stderr, dev)
}

// SetupWriter builds the logger on w and installs it as the global zerolog logger.
func SetupWriter(w io.Writer, dev bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Caller().Stack().Logger()
	}

	log.Logger = logger

	return logger
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport logs every HTTP round trip at debug level.
type Transport struct {
	next http.RoundTripper
}

func NewTransport(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	logger := log.Ctx(req.Context())
	if logger.GetLevel() == zerolog.Disabled {
		l := log.Logger
		logger = &l
	}

	resp, err := t.next.RoundTrip(req)

	if err != nil {
		logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("request_id", req.Header.Get("X-Request-ID")).
			Dur("duration", time.Since(started)).
			Msg("http request failed")

		return resp, err
	}

	logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("http request")

	return resp, nil
}
