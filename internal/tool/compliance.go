package tool

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ComplianceError rejects an invocation whose arguments resolve to a
// disallowed target. The handler never runs for such invocations.
type ComplianceError struct {
	Tool   string
	Target string
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("compliance violation: tool %q argument targets blocked domain %q", e.Tool, e.Target)
}

// Checker screens tool arguments against a blocked-domain list.
type Checker struct {
	blocked []string
}

// NewChecker creates a Checker. Domains are matched case-insensitively
// against URL hosts and bare hostname-looking argument values, including
// subdomains.
func NewChecker(blockedDomains []string) *Checker {
	blocked := make([]string, 0, len(blockedDomains))
	for _, d := range blockedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			blocked = append(blocked, d)
		}
	}
	return &Checker{blocked: blocked}
}

// Check walks every string value in the argument payload and fails with a
// *ComplianceError when one resolves to a blocked domain.
func (c *Checker) Check(toolName string, args json.RawMessage) error {
	if len(c.blocked) == 0 || len(args) == 0 {
		return nil
	}

	var payload interface{}
	if err := json.Unmarshal(args, &payload); err != nil {
		// Unparseable arguments are left for the handler to reject.
		return nil
	}

	var violation *ComplianceError
	walkStrings(payload, func(s string) {
		if violation != nil {
			return
		}
		if domain := c.match(s); domain != "" {
			violation = &ComplianceError{Tool: toolName, Target: domain}
		}
	})
	if violation != nil {
		return violation
	}
	return nil
}

// match returns the blocked domain the value resolves to, or "".
// A domain matches only the exact host or one of its subdomains, so a
// blocked "evil.com" does not reject "medieval.community".
func (c *Checker) match(value string) string {
	host := strings.ToLower(value)
	if u, err := url.Parse(value); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}
	for _, d := range c.blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}
	return ""
}

func walkStrings(v interface{}, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case []interface{}:
		for _, item := range t {
			walkStrings(item, fn)
		}
	case map[string]interface{}:
		for _, item := range t {
			walkStrings(item, fn)
		}
	}
}
