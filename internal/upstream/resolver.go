package upstream

import (
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
)

// EndpointHeader overrides the upstream endpoint for a single request.
// Endpoint selection is request-scoped on purpose: a process-wide mutable
// endpoint races when concurrent operations target different daemons.
const EndpointHeader = "X-Upstream-Endpoint"

// Resolver hands out Clients bound to an endpoint. The default endpoint is
// held atomically and may be re-pointed at runtime (POST /api/set-endpoint);
// in-flight operations keep the endpoint they resolved at admission.
type Resolver struct {
	def        atomic.Value // string
	httpClient *http.Client
}

// NewResolver returns a Resolver with the given default endpoint. The
// shared http.Client carries no timeout; buffered calls bound themselves
// per request.
func NewResolver(defaultURL string) (*Resolver, error) {
	if err := validateEndpoint(defaultURL); err != nil {
		return nil, err
	}
	r := &Resolver{httpClient: &http.Client{Timeout: 0}}
	r.def.Store(defaultURL)
	return r, nil
}

// Default returns the current default endpoint.
func (r *Resolver) Default() string {
	return r.def.Load().(string)
}

// SetDefault validates and installs a new default endpoint.
func (r *Resolver) SetDefault(endpoint string) error {
	if err := validateEndpoint(endpoint); err != nil {
		return err
	}
	r.def.Store(endpoint)
	return nil
}

// ForRequest resolves the endpoint for one inbound request: the override
// header when present, the default otherwise. The returned Client is bound
// to that endpoint for the lifetime of the operation.
func (r *Resolver) ForRequest(req *http.Request) (*Client, error) {
	endpoint := r.Default()
	if v := req.Header.Get(EndpointHeader); v != "" {
		if err := validateEndpoint(v); err != nil {
			return nil, err
		}
		endpoint = v
	}
	return NewClient(endpoint, r.httpClient), nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return nil
}
