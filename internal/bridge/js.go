//go:build js && wasm

package bridge

import (
	"context"
	"syscall/js"

	"github.com/samvad-hq/wcag-scrapper/internal/crashreport"
	"github.com/samvad-hq/wcag-scrapper/internal/logger"
)

// RegisterJS exposes init_panic_hook() and scrape_url(url) on the JS global
// object. scrape_url returns a Promise that resolves with a Uint8Array of the
// response body or rejects with the one-line error message. The returned func
// releases both callbacks.
func RegisterJS(s Scraper, log logger.Logger) (release func()) {
	log = logger.Ensure(log)

	initFn := js.FuncOf(func(js.Value, []js.Value) any {
		crashreport.Install(log)
		return js.Undefined()
	})

	scrapeFn := js.FuncOf(func(_ js.Value, args []js.Value) any {
		url := ""
		if len(args) > 0 {
			url = args[0].String()
		}
		return newPromise(func(resolve, reject js.Value) {
			settle(s.Scrape(context.Background(), url),
				func(body []byte) {
					arr := js.Global().Get("Uint8Array").New(len(body))
					js.CopyBytesToJS(arr, body)
					resolve.Invoke(arr)
				},
				func(msg string) {
					reject.Invoke(msg)
				},
			)
		})
	})

	js.Global().Set("init_panic_hook", initFn)
	js.Global().Set("scrape_url", scrapeFn)

	return func() {
		js.Global().Delete("init_panic_hook")
		js.Global().Delete("scrape_url")
		initFn.Release()
		scrapeFn.Release()
	}
}

// newPromise constructs a JS Promise whose executor hands resolve/reject to run.
// The executor runs synchronously inside the constructor, so it is released
// right after.
func newPromise(run func(resolve, reject js.Value)) js.Value {
	executor := js.FuncOf(func(_ js.Value, args []js.Value) any {
		run(args[0], args[1])
		return js.Undefined()
	})
	defer executor.Release()
	return js.Global().Get("Promise").New(executor)
}
