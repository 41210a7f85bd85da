package jackett

import (
	"net/http"

	"github.com/go-resty/resty/v2"
)

// NotFollowMagnet stops resty from trying to dial a magnet: URI as if it
// were an HTTP redirect target, leaving the Location header for the caller
// to read instead.
func NotFollowMagnet() resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(r1 *http.Request, _ []*http.Request) error {
		if r1.URL.Scheme == "magnet" {
			return http.ErrUseLastResponse
		}
		return nil
	})
}
