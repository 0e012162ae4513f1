package compare

import (
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	lc "github.com/os2mo/loracache"
)

// IgnorePolicy lists per kind the fields excluded from comparison.
type IgnorePolicy map[lc.Kind][]string

// DefaultIgnorePolicy holds the fields the legacy engine is known to get wrong.
func DefaultIgnorePolicy() IgnorePolicy {
	return IgnorePolicy{
		lc.KindEngagement:   {lc.FieldPrimaryBoolean},
		lc.KindAssociation:  {"dynamic_class", lc.FieldPrimaryBoolean},
		lc.KindITConnection: {lc.FieldPrimaryBoolean},
	}
}

type ignoreFile struct {
	Ignore map[string][]string `yaml:"ignore"`
	// Replace drops the defaults instead of extending them.
	Replace bool `yaml:"replace"`
}

// LoadIgnorePolicy reads a YAML file of the form
//
//	ignore:
//	  engagements: [extension_3]
//
// and merges it into the defaults. An empty path returns the defaults.
func LoadIgnorePolicy(path string) (IgnorePolicy, error) {
	policy := DefaultIgnorePolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read ignore policy")
	}

	var file ignoreFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(err, "parse ignore policy %s", path)
	}

	if file.Replace {
		policy = IgnorePolicy{}
	}

	known := map[lc.Kind]bool{}
	for _, k := range lc.Kinds {
		known[k] = true
	}

	for name, fields := range file.Ignore {
		kind := lc.Kind(name)
		if !known[kind] {
			return nil, errors.Wrapf(lc.ErrUnexpectedValue, "ignore policy: unknown kind %q", name)
		}
		for _, f := range fields {
			if !slices.Contains(policy[kind], f) {
				policy[kind] = append(policy[kind], f)
			}
		}
	}

	return policy, nil
}

func (p IgnorePolicy) Fields(kind lc.Kind) []string {
	return p[kind]
}
