package chi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// openRoutes are probed by orchestration and scraped by Prometheus without keys.
var openRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

var (
	errNoCredentials = errors.New("missing authorization header")
	errNotBearer     = errors.New("authorization header must use Bearer scheme")
	errUnknownKey    = errors.New("invalid api key")
)

// keyring holds accepted API keys. Comparison is constant time over every key.
type keyring [][]byte

func newKeyring(keys []string) keyring {
	var kr keyring
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			kr = append(kr, []byte(k))
		}
	}
	return kr
}

func (kr keyring) accepts(token string) bool {
	matched := 0
	for _, k := range kr {
		matched |= subtle.ConstantTimeCompare([]byte(token), k)
	}
	return matched == 1
}

// check validates the Authorization header of r.
func (kr keyring) check(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return errNotBearer
	}
	if !kr.accepts(strings.TrimSpace(token)) {
		return errUnknownKey
	}
	return nil
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" on every route
// except health and metrics. With no non-empty keys auth is off.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	kr := newKeyring(apiKeys)

	return func(next http.Handler) http.Handler {
		if len(kr) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if openRoutes[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if err := kr.check(r); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="docscan"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
