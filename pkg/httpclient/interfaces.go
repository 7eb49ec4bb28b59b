package httpclient

import (
	"context"
	"io"
)

// Response is a minimal HTTP response contract. The body is left unread so callers
// decide whether it is consumed or discarded.
type Response interface {
	StatusCode() int
	Status() string
	IsSuccess() bool
	RawBody() io.ReadCloser
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Get returns once the response head has arrived.
type Client interface {
	Get(ctx context.Context, url string) (Response, error)
	Close()
}

// Logger is the printf-style logging surface the HTTP stack writes warnings to.
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// Options configures a client built by a Builder.
type Options struct {
	UserAgent    string
	CABundleFile string
	Logger       Logger
}

// Builder constructs a Client. Construction may fail before any network activity.
type Builder func(opts Options) (Client, error)
