package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
)

// Location is a coarse position of an IP address.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// GeoLocator resolves an IP. A nil Location without error means unknown.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) (*Location, error)
}

// HTTPGeoLocator queries an ip-api compatible JSON endpoint and caches answers.
type HTTPGeoLocator struct {
	client   *http.Client
	endpoint string
	cache    *cache.Cache
	ttl      time.Duration
}

// NewHTTPGeoLocator builds a locator; store may be nil to disable caching.
func NewHTTPGeoLocator(cfg configs.GeoConfig, store kv.KVStore) *HTTPGeoLocator {
	g := &HTTPGeoLocator{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		ttl:      cfg.CacheTTL,
	}

	if store != nil && cfg.CacheTTL > 0 {
		g.cache = cache.NewCache(store, "geo")
	}

	return g
}

type ipAPIResponse struct {
	Status      string `json:"status"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	Message     string `json:"message"`
}

// Locate skips addresses that cannot be located, such as loopback and private ranges.
func (g *HTTPGeoLocator) Locate(ctx context.Context, ip string) (*Location, error) {
	addr := net.ParseIP(ip)
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return nil, nil
	}

	if g.cache == nil {
		return g.fetch(ctx, addr.String())
	}

	loc, err := cache.GetOrSet(ctx, g.cache, addr.String(), func() (Location, error) {
		l, err := g.fetch(ctx, addr.String())
		if err != nil || l == nil {
			return Location{}, fmt.Errorf("locate %s: %w", ip, errOrUnknown(err))
		}

		return *l, nil
	}, g.ttl)
	if err != nil {
		return nil, err
	}

	return &loc, nil
}

var errUnknownLocation = fmt.Errorf("location unknown")

func errOrUnknown(err error) error {
	if err != nil {
		return err
	}

	return errUnknownLocation
}

func (g *HTTPGeoLocator) fetch(ctx context.Context, ip string) (*Location, error) {
	url := strings.Replace(g.endpoint, "%s", ip, 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}

	var out ipAPIResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode geo response: %w", err)
	}

	if out.Status != "" && out.Status != "success" {
		return nil, fmt.Errorf("geo lookup %s: %s", out.Status, out.Message)
	}

	country := out.CountryCode
	if country == "" {
		country = out.Country
	}

	return &Location{Country: country, City: out.City}, nil
}
