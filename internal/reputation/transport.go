package reputation

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/trishield/internal/model"
)

// NewProxyFunc picks a proxy per request scheme, falling back to the
// environment when neither proxy is configured
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// NewHTTPClient builds the client used to talk to the reputation service.
// Request deadlines come from the caller's context, so no client timeout is set.
func NewHTTPClient(cfg model.ReputationConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)
	transport.ResponseHeaderTimeout = 10 * time.Second

	return &http.Client{Transport: transport}
}
