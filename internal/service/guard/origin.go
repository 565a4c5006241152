package guard

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Origin check reason codes, logged when a request is blocked.
const (
	ReasonOriginAllowed      = "origin_allowed"
	ReasonOriginNotAllowed   = "origin_not_allowed"
	ReasonOriginInvalid      = "origin_invalid"
	ReasonSecFetchSite       = "sec_fetch_site_allowed"
	ReasonDevModeNoOrigin    = "dev_mode_no_origin"
	ReasonMissingOriginHints = "missing_origin_and_sec_fetch_site"
)

// OriginPolicy enforces a same-site policy for the cookie-authenticated
// chatbot endpoint. It is CSRF-style protection, not authentication.
type OriginPolicy struct {
	siteURL       string
	publicSiteURL string
	production    bool
}

// NewOriginPolicy builds a policy around the configured site URLs. Outside
// production the policy also admits local development origins and requests
// carrying no origin signal at all.
func NewOriginPolicy(siteURL, publicSiteURL string, production bool) *OriginPolicy {
	return &OriginPolicy{
		siteURL:       siteURL,
		publicSiteURL: publicSiteURL,
		production:    production,
	}
}

// OriginCheck is the outcome of one policy evaluation.
type OriginCheck struct {
	Allowed        bool
	Origin         string
	AllowedOrigins []string
	Reason         string
}

// Check evaluates the request against the allow-set. An Origin header, when
// present, is authoritative; otherwise Sec-Fetch-Site is consulted; a request
// with neither signal is denied in production (fail closed).
func (p *OriginPolicy) Check(r *http.Request) OriginCheck {
	allowed := p.allowedOrigins(r)
	result := OriginCheck{AllowedOrigins: sortedKeys(allowed)}

	if originHeader := r.Header.Get("Origin"); originHeader != "" {
		parsed, err := url.Parse(originHeader)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			result.Origin = originHeader
			result.Reason = ReasonOriginInvalid
			return result
		}

		normalized := parsed.Scheme + "://" + parsed.Host
		result.Origin = normalized
		if allowed[normalized] {
			result.Allowed = true
			result.Reason = ReasonOriginAllowed
		} else {
			result.Reason = ReasonOriginNotAllowed
		}
		return result
	}

	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "same-site", "none":
		result.Allowed = true
		result.Reason = ReasonSecFetchSite
		return result
	}

	if !p.production {
		result.Allowed = true
		result.Reason = ReasonDevModeNoOrigin
		return result
	}

	result.Reason = ReasonMissingOriginHints
	return result
}

func (p *OriginPolicy) allowedOrigins(r *http.Request) map[string]bool {
	allowed := make(map[string]bool, 5)

	for _, raw := range []string{p.siteURL, p.publicSiteURL} {
		if raw == "" {
			continue
		}
		if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" && parsed.Host != "" {
			allowed[parsed.Scheme+"://"+parsed.Host] = true
		}
	}

	if r.Host != "" {
		allowed[requestScheme(r)+"://"+r.Host] = true
	}

	if !p.production {
		allowed["http://localhost:3000"] = true
		allowed["http://127.0.0.1:3000"] = true
	}

	return allowed
}

// requestScheme resolves the external scheme of the request, trusting the
// proxy's X-Forwarded-Proto before the direct connection.
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		if strings.EqualFold(strings.TrimSpace(first), "https") {
			return "https"
		}
		return "http"
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
