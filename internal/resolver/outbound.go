package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"beershop/domain/entity"
	"beershop/pkg/customerrors"

	"golang.org/x/net/idna"
)

// blockedPrefixes complements the netip predicates with ranges that are not
// private in the RFC1918 sense but still reach infrastructure.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
	netip.MustParsePrefix("2002::/16"),
}

// Blocked reports whether addr is loopback, private, link-local, unique-local
// or otherwise not a public unicast destination.
func Blocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Lookup is the subset of *net.Resolver used for name resolution.
type Lookup interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

var errSSRF = customerrors.New(customerrors.KindSsrfBlocked, "SSRF blocked")

// OutboundResolver validates candidate URLs before the server contacts them.
type OutboundResolver struct {
	lookup Lookup
}

func NewOutboundResolver(lookup Lookup) *OutboundResolver {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	return &OutboundResolver{lookup: lookup}
}

// Resolve parses raw, enforces the http/https scheme, resolves the host and
// rejects the target if any resolved address is blocked.
func (r *OutboundResolver) Resolve(ctx context.Context, raw string) (entity.OutboundTarget, error) {
	var target entity.OutboundTarget
	if raw == "" {
		return target, customerrors.Validation("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return target, customerrors.Validation("Invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return target, customerrors.New(customerrors.KindSsrfBlocked, "Protocol not allowed")
	}
	if u.Host == "" || u.Opaque != "" {
		return target, customerrors.Validation("Invalid URL")
	}
	if u.User != nil {
		return target, customerrors.Validation("Invalid URL")
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return target, customerrors.Validation("Invalid URL")
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}

	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = r.lookup.LookupNetIP(ctx, "ip", host)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("lookup %s: %w", host, ctx.Err())
			}
			return target, upstreamError(err)
		}
	}
	if len(addrs) == 0 {
		return target, customerrors.New(customerrors.KindUpstreamUnavailable, "Request failed")
	}
	for _, a := range addrs {
		if Blocked(a) {
			return target, errSSRF
		}
	}

	return entity.OutboundTarget{
		Scheme:            u.Scheme,
		Host:              host,
		Port:              port,
		RawURL:            u.String(),
		ResolvedAddresses: addrs,
	}, nil
}

func normalizeHost(host string) (string, error) {
	if host == "" {
		return "", errors.New("empty host")
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", err
	}
	return strings.ToLower(ascii), nil
}

// FetchResult is what an outbound call hands back to the route. Redirects
// are reported through Location, never followed.
type FetchResult struct {
	Status   int    `json:"status"`
	Location string `json:"location,omitempty"`
	Body     []byte `json:"-"`
}

type targetKey struct{}

// Fetcher issues GET requests to resolved targets only. The dialer connects
// to the addresses vetted by the resolver, never to a fresh lookup, so a
// rebinding DNS answer cannot redirect the connection.
type Fetcher struct {
	resolver    *OutboundResolver
	client      *http.Client
	timeout     time.Duration
	maxBody     int64
	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewFetcher(resolver *OutboundResolver, timeout time.Duration, maxBody int64) *Fetcher {
	f := &Fetcher{
		resolver:    resolver,
		timeout:     timeout,
		maxBody:     maxBody,
		dialContext: (&net.Dialer{Timeout: timeout}).DialContext,
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           f.dialPinned,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
	}
	f.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *Fetcher) dialPinned(ctx context.Context, network, _ string) (net.Conn, error) {
	target, ok := ctx.Value(targetKey{}).(entity.OutboundTarget)
	if !ok {
		return nil, errors.New("outbound dial without a resolved target")
	}
	var lastErr error
	for _, addr := range target.ResolvedAddresses {
		if Blocked(addr) {
			return nil, errSSRF
		}
		conn, err := f.dialContext(ctx, network, net.JoinHostPort(addr.Unmap().String(), target.Port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Get resolves raw, then fetches it. maxBody of zero uses the fetcher cap.
// The timeout covers the DNS lookup as well as the request.
func (f *Fetcher) Get(ctx context.Context, raw string, maxBody int64) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target, err := f.resolver.Resolve(ctx, raw)
	if err != nil {
		return FetchResult{}, err
	}
	return f.fetch(ctx, target, maxBody)
}

func (f *Fetcher) fetch(ctx context.Context, target entity.OutboundTarget, maxBody int64) (FetchResult, error) {
	if maxBody <= 0 {
		maxBody = f.maxBody
	}
	ctx = context.WithValue(ctx, targetKey{}, target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.RawURL, nil)
	if err != nil {
		return FetchResult{}, customerrors.Validation("Invalid URL")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, upstreamError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return FetchResult{}, upstreamError(err)
	}
	if int64(len(body)) > maxBody {
		return FetchResult{}, customerrors.New(customerrors.KindUpstreamUnavailable, "Response too large")
	}

	result := FetchResult{Status: resp.StatusCode, Body: body}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		result.Location = resp.Header.Get("Location")
	}
	return result, nil
}

func upstreamError(err error) error {
	var appErr *customerrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return customerrors.Wrap(customerrors.KindUpstreamTimeout, "Request timed out", err)
	}
	return customerrors.Wrap(customerrors.KindUpstreamUnavailable, "Request failed", fmt.Errorf("outbound: %w", err))
}
