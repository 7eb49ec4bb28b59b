//go:build js && wasm

package bridge

import (
	"syscall/js"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/wcag-scrapper/pkg/scraper"
)

type jsOutcome struct {
	body     []byte
	rejected string
	ok       bool
}

func awaitPromise(t *testing.T, p js.Value) jsOutcome {
	t.Helper()
	out := make(chan jsOutcome, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		arr := args[0]
		buf := make([]byte, arr.Get("length").Int())
		js.CopyBytesToGo(buf, arr)
		out <- jsOutcome{body: buf, ok: true}
		return nil
	})
	defer onResolve.Release()
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		out <- jsOutcome{rejected: args[0].String()}
		return nil
	})
	defer onReject.Release()

	p.Call("then", onResolve, onReject)

	select {
	case got := <-out:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("promise never settled")
		return jsOutcome{}
	}
}

func TestScrapeURLResolvesWithUint8Array(t *testing.T) {
	fake := &fakeScraper{results: map[string]fakeResult{
		"https://example.test/ok":      {body: []byte("hello")},
		"https://example.test/missing": {err: &scraper.Error{Kind: scraper.KindStatus, Detail: "404 Not Found", StatusCode: 404}},
	}}
	release := RegisterJS(fake, nil)
	defer release()

	ok := awaitPromise(t, js.Global().Call("scrape_url", "https://example.test/ok"))
	require.True(t, ok.ok)
	assert.Equal(t, "hello", string(ok.body))

	missing := awaitPromise(t, js.Global().Call("scrape_url", "https://example.test/missing"))
	require.False(t, missing.ok)
	assert.Equal(t, "HTTP error: 404 Not Found", missing.rejected)
}

func TestInitPanicHookIsCallableTwice(t *testing.T) {
	release := RegisterJS(&fakeScraper{}, nil)
	defer release()

	js.Global().Call("init_panic_hook")
	js.Global().Call("init_panic_hook")
}
