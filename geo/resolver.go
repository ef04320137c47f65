// Package geo implements the geo-resolution contract over plain HTTP lookup
// services. Resolution is best effort: callers substitute a fallback place on
// any error, so this package favors bounded timeouts over retries.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-activity/pkg/types"
	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultIPLookupURL = "http://ip-api.com/json"
	defaultPublicIPURL = "https://wtfismyip.com/text"
	defaultTimeout     = 5 * time.Second
)

// ResolverConfig wires the HTTP resolver.
type ResolverConfig struct {
	Client *http.Client
	// IPLookupURL serves GET {url}/{ip} with a JSON body carrying city/country.
	IPLookupURL string
	// CoordinateURL serves GET {url}?lat=..&lon=.. with the same JSON shape.
	CoordinateURL string
	// PublicIPURL echoes the caller's public address as plain text.
	PublicIPURL string
	Timeout     time.Duration
}

// Resolver resolves IPs and coordinates via external lookup services.
type Resolver struct {
	client        *http.Client
	ipLookupURL   string
	coordinateURL string
	publicIPURL   string
	timeout       time.Duration
}

var _ types.GeoResolver = (*Resolver)(nil)

// NewResolver constructs the resolver with defaulted endpoints and timeout.
func NewResolver(cfg ResolverConfig) *Resolver {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	ipLookupURL := cfg.IPLookupURL
	if ipLookupURL == "" {
		ipLookupURL = defaultIPLookupURL
	}
	publicIPURL := cfg.PublicIPURL
	if publicIPURL == "" {
		publicIPURL = defaultPublicIPURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		client:        client,
		ipLookupURL:   ipLookupURL,
		coordinateURL: cfg.CoordinateURL,
		publicIPURL:   publicIPURL,
		timeout:       timeout,
	}
}

type placePayload struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// ByIP resolves an address into a coarse place.
func (r *Resolver) ByIP(ctx context.Context, ip string) (types.Place, error) {
	endpoint := strings.TrimSuffix(r.ipLookupURL, "/") + "/" + url.PathEscape(ip)
	return r.fetchPlace(ctx, endpoint)
}

// ByCoordinates resolves a lat/lon pair into a coarse place.
func (r *Resolver) ByCoordinates(ctx context.Context, lat, lon float64) (types.Place, error) {
	if r.coordinateURL == "" {
		return types.Place{}, goerrors.New("geo: coordinate endpoint not configured", goerrors.CategoryInternal)
	}
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return r.fetchPlace(ctx, r.coordinateURL+"?"+query.Encode())
}

// PublicIP discovers the caller's public address through the echo endpoint.
// Used when a recorded action carries only a loopback address.
func (r *Resolver) PublicIP(ctx context.Context) (string, error) {
	body, err := r.fetch(ctx, r.publicIPURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (r *Resolver) fetchPlace(ctx context.Context, endpoint string) (types.Place, error) {
	body, err := r.fetch(ctx, endpoint)
	if err != nil {
		return types.Place{}, err
	}
	var payload placePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.Place{}, goerrors.Wrap(err, goerrors.CategoryInternal, "geo: malformed lookup response")
	}
	return types.Place{City: payload.City, Country: payload.Country}, nil
}

func (r *Resolver) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, goerrors.New(
			fmt.Sprintf("geo: lookup returned status %d", res.StatusCode),
			goerrors.CategoryInternal,
		)
	}
	return io.ReadAll(io.LimitReader(res.Body, 1<<16))
}
