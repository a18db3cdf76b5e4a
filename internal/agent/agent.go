// Package agent identifies automated shopper clients calling the
// storefront API. Agents announce themselves with a structured header;
// the identity feeds logging and per-caller rate limiting, and a version
// gate keeps clients older than the supported protocol off the API.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// Header is the agent identification header name.
// Format: id="buyer-bot", version="1.2.0" (RFC 8941 Dictionary).
const Header = "Shop-Agent"

// Identity describes a shopper agent.
type Identity struct {
	ID      string
	Version string
}

// ParseHeader extracts the agent identity from a Shop-Agent header.
//
// Examples:
//   - id="buyer-bot"                     → {ID: buyer-bot}
//   - id="buyer-bot", version="1.2.0"    → {ID: buyer-bot, Version: 1.2.0}
//
// Returns an error if the header is empty, malformed, or missing the id key.
func ParseHeader(header string) (*Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty Shop-Agent header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid Shop-Agent header: %w", err)
	}

	id, err := stringMember(dict, "id")
	if err != nil {
		return nil, err
	}

	identity := &Identity{ID: id}
	if version, err := stringMember(dict, "version"); err == nil {
		identity.Version = version
	}
	return identity, nil
}

func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", fmt.Errorf("%s key not found in Shop-Agent header", key)
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	value, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return value, nil
}

// SupportsVersion reports whether an agent's announced version meets the
// minimum supported client version. Uses semver comparison when both
// sides look like semver, otherwise string equality. An agent without a
// version is allowed through; only an announced, too-old version is
// rejected.
func SupportsVersion(announced, minimum string) bool {
	if announced == "" || minimum == "" {
		return true
	}

	av := normalizeVersion(announced)
	mv := normalizeVersion(minimum)
	if !semver.IsValid(av) || !semver.IsValid(mv) {
		return announced == minimum
	}
	return semver.Compare(av, mv) >= 0
}

// normalizeVersion adds the "v" prefix semver parsing requires.
func normalizeVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
