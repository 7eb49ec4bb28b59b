package bridge

import "github.com/samvad-hq/wcag-scrapper/pkg/async"

// settle hands the outcome of fut to exactly one of resolve or reject. Bodies
// are never nil and rejections carry the one-line error message.
func settle(fut *async.Future[[]byte], resolve func(body []byte), reject func(msg string)) {
	fut.Then(
		func(body []byte) {
			if body == nil {
				body = []byte{}
			}
			resolve(body)
		},
		func(err error) {
			reject(rejection(err))
		},
	)
}

func rejection(err error) string {
	if err == nil {
		return "Scrape failed: unknown error"
	}
	return err.Error()
}
