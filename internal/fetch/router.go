package fetch

import (
	"context"
	"net/url"
	"strings"
)

type route struct {
	host    string
	fetcher Fetcher
}

// Router sends URLs whose host contains a registered key to that key's
// fetcher, and everything else to the default.
type Router struct {
	def    Fetcher
	routes []route
}

// NewRouter creates a Router with a default fetcher.
func NewRouter(def Fetcher) *Router {
	return &Router{def: def}
}

// Route registers f for hosts containing host. Earlier routes win.
func (r *Router) Route(host string, f Fetcher) {
	r.routes = append(r.routes, route{host: strings.ToLower(host), fetcher: f})
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	rawURL = WithScheme(rawURL)
	return r.pick(rawURL).Fetch(ctx, rawURL)
}

func (r *Router) pick(rawURL string) Fetcher {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.def
	}
	host := strings.ToLower(u.Host)
	for _, rt := range r.routes {
		if strings.Contains(host, rt.host) {
			return rt.fetcher
		}
	}
	return r.def
}
