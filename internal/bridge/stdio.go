package bridge

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samvad-hq/wcag-scrapper/internal/logger"
	"github.com/samvad-hq/wcag-scrapper/pkg/async"
	"github.com/samvad-hq/wcag-scrapper/pkg/scraper"
)

const (
	// KindInvalidRequest marks responses to lines that could not be dispatched.
	KindInvalidRequest = "invalid_request"

	maxRequestLineBytes = 1 << 20
)

// Scraper is the fetch capability a bridge exposes to its host.
type Scraper interface {
	Scrape(ctx context.Context, url string) *async.Future[[]byte]
}

// Request is one line of host input.
type Request struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Response is one line of bridge output. Body is base64 and present on every
// successful response, including empty ones.
type Response struct {
	ID    string  `json:"id"`
	OK    bool    `json:"ok"`
	Body  *string `json:"body,omitempty"`
	Error string  `json:"error,omitempty"`
	Kind  string  `json:"kind,omitempty"`
}

// Stdio serves scrape requests as newline-delimited JSON. Requests run
// concurrently and responses are written in completion order.
type Stdio struct {
	scraper Scraper
	log     logger.Logger

	mu       sync.Mutex
	enc      *json.Encoder
	writeErr error
}

// NewStdio builds a stdio bridge over s.
func NewStdio(s Scraper, log logger.Logger) *Stdio {
	return &Stdio{scraper: s, log: logger.Ensure(log)}
}

// Serve reads requests from r until EOF or ctx is done, then waits for in-flight
// scrapes to be answered on w. Cancellation is a clean stop and returns nil.
// A line longer than maxRequestLineBytes is answered with invalid_request and
// the session continues.
func (b *Stdio) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	if b == nil || b.scraper == nil {
		return fmt.Errorf("stdio bridge is not initialized")
	}
	b.enc = json.NewEncoder(w)

	stop := make(chan struct{})
	defer close(stop)
	lines := make(chan inputLine)
	go readLines(r, lines, stop)

	var (
		wg      sync.WaitGroup
		readErr error
	)
read:
	for {
		select {
		case <-ctx.Done():
			break read
		case in, ok := <-lines:
			if !ok {
				break read
			}
			if in.err != nil {
				readErr = in.err
				break read
			}
			b.handle(ctx, in, &wg)
		}
	}

	wg.Wait()

	b.mu.Lock()
	writeErr := b.writeErr
	b.mu.Unlock()

	if readErr != nil {
		return errors.Join(fmt.Errorf("read requests: %w", readErr), writeErr)
	}
	return writeErr
}

type inputLine struct {
	text    string
	tooLong bool
	err     error
}

// readLines frames r into lines and sends them until EOF, a read error or stop.
// It may stay blocked in Read after stop when r never returns.
func readLines(r io.Reader, out chan<- inputLine, stop <-chan struct{}) {
	defer close(out)

	send := func(in inputLine) bool {
		select {
		case out <- in:
			return true
		case <-stop:
			return false
		}
	}

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		var (
			buf     []byte
			tooLong bool
			err     error
		)
		for {
			var chunk []byte
			chunk, err = br.ReadSlice('\n')
			if !tooLong {
				if len(buf)+len(chunk) > maxRequestLineBytes+1 {
					tooLong, buf = true, nil
				} else {
					buf = append(buf, chunk...)
				}
			}
			if err != bufio.ErrBufferFull {
				break
			}
		}

		if len(buf) > 0 || tooLong {
			if !send(inputLine{text: string(buf), tooLong: tooLong}) {
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			send(inputLine{err: err})
			return
		}
	}
}

func (b *Stdio) handle(ctx context.Context, in inputLine, wg *sync.WaitGroup) {
	if in.tooLong {
		b.reject(Request{}, fmt.Errorf("request line exceeds %d bytes", maxRequestLineBytes))
		return
	}
	line := strings.TrimSpace(in.text)
	if line == "" {
		return
	}

	req, err := decodeRequest(line)
	if err != nil {
		b.reject(req, err)
		return
	}

	wg.Add(1)
	b.dispatch(ctx, req, wg)
}

func (b *Stdio) reject(req Request, err error) {
	b.log.WarnObj("stdio request rejected", "bridge_error", map[string]any{
		"id":    req.ID,
		"error": err.Error(),
	})
	b.write(Response{ID: req.ID, Error: err.Error(), Kind: KindInvalidRequest})
}

func decodeRequest(line string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	req.ID = strings.TrimSpace(req.ID)
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return req, errors.New("url is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req, nil
}

func (b *Stdio) dispatch(ctx context.Context, req Request, wg *sync.WaitGroup) {
	fut := b.scraper.Scrape(ctx, req.URL)
	fut.Then(
		func(body []byte) {
			defer wg.Done()
			encoded := base64.StdEncoding.EncodeToString(body)
			b.write(Response{ID: req.ID, OK: true, Body: &encoded})
		},
		func(err error) {
			defer wg.Done()
			b.write(failure(req.ID, err))
		},
	)
}

func failure(id string, err error) Response {
	kind := "unknown"
	if k, ok := scraper.KindOf(err); ok {
		kind = k.String()
	}
	return Response{ID: id, Error: err.Error(), Kind: kind}
}

func (b *Stdio) write(resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return
	}
	if err := b.enc.Encode(resp); err != nil {
		b.writeErr = fmt.Errorf("write response %s: %w", resp.ID, err)
	}
}
