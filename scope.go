package loracache

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const ScopeDAR = "DAR"

type scopeSpec struct {
	label  string
	prefix string
}

// Closed set of address object types. Anything else is fatal.
var scopes = map[string]scopeSpec{
	"EMAIL":   {label: "E-mail", prefix: "urn:mailto:"},
	"PHONE":   {label: "Telefon", prefix: "urn:magenta.dk:telefon:"},
	"PNUMBER": {label: "P-nummer", prefix: "urn:dk:cvr:produktionsenhed:"},
	"EAN":     {label: "EAN", prefix: "urn:magenta.dk:ean:"},
	"WWW":     {label: "Url", prefix: "urn:magenta.dk:www:"},
	"TEXT":    {label: "Text", prefix: "urn:text:"},
	ScopeDAR:  {label: "DAR"},
}

// ScopeLabel maps an address object type code to its label.
func ScopeLabel(code string) (string, error) {
	spec, ok := scopes[code]
	if !ok {
		return "", errors.Wrapf(ErrUnknownScope, "%q", code)
	}

	return spec.label, nil
}

// DecodeAddressValue strips the scope specific urn prefix of a registry value.
// TEXT values are url-escaped in the registry.
func DecodeAddressValue(code, urn string) (string, error) {
	spec, ok := scopes[code]
	if !ok {
		return "", errors.Wrapf(ErrUnknownScope, "%q", code)
	}

	if code == ScopeDAR {
		return "", errors.Wrap(ErrUnexpectedValue, "DAR addresses carry no inline value")
	}

	if !strings.HasPrefix(urn, spec.prefix) {
		return "", errors.Wrapf(ErrUnexpectedValue, "%s value %q lacks prefix %q", code, urn, spec.prefix)
	}

	value := strings.TrimPrefix(urn, spec.prefix)
	if code == "TEXT" {
		unescaped, err := url.PathUnescape(value)
		if err != nil {
			return "", errors.Wrapf(ErrUnexpectedValue, "text value %q: %v", value, err)
		}
		value = unescaped
	}

	return value, nil
}

// CheckOwner enforces that exactly one of user and unit is set. A record with
// neither is ErrMissingOwner; a record with both is unexpected data.
func CheckOwner(s Snapshot) error {
	user, unit := s.String("user") != "", s.String("unit") != ""

	switch {
	case user && unit:
		return errors.Wrap(ErrUnexpectedValue, "record owned by both a person and a unit")
	case !user && !unit:
		return ErrMissingOwner
	}

	return nil
}
