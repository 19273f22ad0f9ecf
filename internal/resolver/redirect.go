package resolver

import (
	"net/url"
	"strings"

	"beershop/pkg/customerrors"

	"golang.org/x/net/idna"
)

var errRedirect = customerrors.New(customerrors.KindRedirectNotAllowed, "Redirect not allowed")

// RedirectAllowList permits redirects to https URLs on an exact host list.
type RedirectAllowList struct {
	hosts map[string]struct{}
}

func NewRedirectAllowList(hosts []string) *RedirectAllowList {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if ascii, err := idna.Lookup.ToASCII(h); err == nil {
			h = ascii
		}
		set[strings.ToLower(h)] = struct{}{}
	}
	return &RedirectAllowList{hosts: set}
}

// Check returns the normalized redirect URL or RedirectNotAllowed.
func (a *RedirectAllowList) Check(raw string) (string, error) {
	if raw == "" {
		return "", customerrors.Validation("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Opaque != "" || u.User != nil {
		return "", errRedirect
	}
	if p := u.Port(); p != "" && p != "443" {
		return "", errRedirect
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil || host == "" {
		return "", errRedirect
	}
	if _, ok := a.hosts[strings.ToLower(host)]; !ok {
		return "", errRedirect
	}
	return u.String(), nil
}
