//go:build js && wasm

package main

import (
	"os"

	"github.com/samvad-hq/wcag-scrapper/internal/bridge"
	"github.com/samvad-hq/wcag-scrapper/internal/logger"
	"github.com/samvad-hq/wcag-scrapper/pkg/scraper"
	"go.uber.org/zap/zapcore"
)

// main registers init_panic_hook and scrape_url on the JS global object and
// keeps the Go runtime alive for the callbacks.
func main() {
	log := logger.New("info", zapcore.Lock(os.Stderr))

	fetcher := scraper.New(
		scraper.WithLogger(log),
		scraper.WithHTTPLogger(log.Sugar()),
	)
	bridge.RegisterJS(fetcher, log)

	select {}
}
