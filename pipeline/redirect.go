package pipeline

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// NewHTTPSRedirectStage redirects plaintext requests to https on port with
// 307. A port of 0 disables the redirect: without a known https port there
// is nowhere to send the client.
func NewHTTPSRedirectStage(port int) *ConditionalStage {
	return &ConditionalStage{
		StageName: StageHTTPSRedirect,
		Predicate: func(rc *RequestContext) bool {
			return port > 0 && !isSecure(rc.Request)
		},
		Serve: func(rc *RequestContext) error {
			target := httpsURL(rc.Request, port)
			rc.Decide(StageHTTPSRedirect, target)
			http.Redirect(rc.Writer, rc.Request, target, http.StatusTemporaryRedirect)
			return nil
		},
	}
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

func httpsURL(r *http.Request, port int) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != 443 {
		host = host + ":" + strconv.Itoa(port)
	}

	u := *r.URL
	u.Scheme = "https"
	u.Host = host
	return u.String()
}
