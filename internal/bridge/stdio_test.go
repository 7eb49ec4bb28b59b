package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/wcag-scrapper/pkg/async"
	"github.com/samvad-hq/wcag-scrapper/pkg/scraper"
)

type fakeResult struct {
	body  []byte
	err   error
	delay time.Duration
}

type fakeScraper struct {
	results map[string]fakeResult
	calls   chan string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) *async.Future[[]byte] {
	res, ok := f.results[url]
	if f.calls != nil {
		f.calls <- url
	}
	return async.Go(func() ([]byte, error) {
		if !ok {
			return nil, errors.New("unexpected url " + url)
		}
		time.Sleep(res.delay)
		return res.body, res.err
	})
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []Response {
	t.Helper()
	var resps []Response
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var r Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), "line %q", sc.Text())
		resps = append(resps, r)
	}
	require.NoError(t, sc.Err())
	return resps
}

func byID(resps []Response) map[string]Response {
	out := make(map[string]Response, len(resps))
	for _, r := range resps {
		out[r.ID] = r
	}
	return out
}

func TestStdioAnswersEveryRequest(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{
		"https://example.test/ok":      {body: []byte("hello")},
		"https://example.test/empty":   {body: []byte{}},
		"https://example.test/missing": {err: &scraper.Error{Kind: scraper.KindStatus, Detail: "404 Not Found", StatusCode: 404}},
	}}
	in := strings.NewReader(strings.Join([]string{
		`{"id":"a","url":"https://example.test/ok"}`,
		``,
		`{"id":"b","url":"https://example.test/empty"}`,
		`{"id":"c","url":"https://example.test/missing"}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, NewStdio(fake, nil).Serve(context.Background(), in, &out))

	resps := byID(decodeResponses(t, &out))
	require.Len(t, resps, 3)

	ok := resps["a"]
	require.True(t, ok.OK)
	require.NotNil(t, ok.Body)
	raw, err := base64.StdEncoding.DecodeString(*ok.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))

	empty := resps["b"]
	require.True(t, empty.OK)
	require.NotNil(t, empty.Body, "empty success must still carry a body field")
	assert.Equal(t, "", *empty.Body)

	missing := resps["c"]
	assert.False(t, missing.OK)
	assert.Nil(t, missing.Body)
	assert.Equal(t, "HTTP error: 404 Not Found", missing.Error)
	assert.Equal(t, "status", missing.Kind)
}

func TestStdioRespondsInCompletionOrder(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{
		"slow": {body: []byte("s"), delay: 100 * time.Millisecond},
		"fast": {body: []byte("f")},
	}}
	in := strings.NewReader("{\"id\":\"1\",\"url\":\"slow\"}\n{\"id\":\"2\",\"url\":\"fast\"}\n")
	var out bytes.Buffer

	require.NoError(t, NewStdio(fake, nil).Serve(context.Background(), in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 2)
	assert.Equal(t, "2", resps[0].ID)
	assert.Equal(t, "1", resps[1].ID)
}

func TestStdioRejectsMalformedLines(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{}}
	in := strings.NewReader("not json\n{\"id\":\"x\"}\n")
	var out bytes.Buffer

	require.NoError(t, NewStdio(fake, nil).Serve(context.Background(), in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 2)
	for _, r := range resps {
		assert.False(t, r.OK)
		assert.Equal(t, KindInvalidRequest, r.Kind)
	}
	assert.Equal(t, "x", resps[1].ID)
	assert.Equal(t, "url is required", resps[1].Error)
}

func TestStdioGeneratesMissingIDs(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{"u": {body: []byte("b")}}}
	var out bytes.Buffer

	require.NoError(t, NewStdio(fake, nil).Serve(context.Background(), strings.NewReader(`{"url":"u"}`), &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 1)
	assert.Len(t, resps[0].ID, 36)
	assert.True(t, resps[0].OK)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestStdioReportsWriteFailure(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{"u": {body: []byte("b")}}}

	err := NewStdio(fake, nil).Serve(context.Background(), strings.NewReader(`{"id":"1","url":"u"}`), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe closed")
}

func TestStdioEndToEndWithFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	in := strings.NewReader(
		`{"id":"page","url":"` + srv.URL + `/page"}` + "\n" +
			`{"id":"gone","url":"` + srv.URL + `/missing"}` + "\n",
	)
	var out bytes.Buffer

	require.NoError(t, NewStdio(scraper.New(), nil).Serve(context.Background(), in, &out))

	resps := byID(decodeResponses(t, &out))
	require.Len(t, resps, 2)

	raw, err := base64.StdEncoding.DecodeString(*resps["page"].Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(raw))
	assert.Equal(t, "HTTP error: 404 Not Found", resps["gone"].Error)
}

func TestStdioReturnsWhenContextIsCancelledOnIdleInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewStdio(&fakeScraper{}, nil).Serve(ctx, pr, io.Discard)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve still blocked after context cancel")
	}
}

func TestStdioDrainsInFlightRequestsOnCancel(t *testing.T) {
	fake := &fakeScraper{
		results: map[string]fakeResult{"slow": {body: []byte("late"), delay: 100 * time.Millisecond}},
		calls:   make(chan string, 1),
	}
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- NewStdio(fake, nil).Serve(ctx, pr, &out)
	}()

	go func() { _, _ = pw.Write([]byte("{\"id\":\"s\",\"url\":\"slow\"}\n")) }()
	select {
	case <-fake.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("request was never dispatched")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 1)
	assert.Equal(t, "s", resps[0].ID)
	assert.True(t, resps[0].OK)
}

func TestStdioAnswersOversizedLineAndContinues(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{"u": {body: []byte("b")}}}
	in := strings.NewReader(strings.Repeat("a", maxRequestLineBytes+10) + "\n" + `{"id":"next","url":"u"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, NewStdio(fake, nil).Serve(context.Background(), in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 2)
	assert.Equal(t, KindInvalidRequest, resps[0].Kind)
	assert.Contains(t, resps[0].Error, "exceeds")
	assert.Equal(t, "next", resps[1].ID)
	assert.True(t, resps[1].OK)
}
