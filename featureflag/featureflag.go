package featureflag

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const ErrTypeFeatureDisabled = "feature_disabled"

// FeatureFlag is a lookup map of enabled flags.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags named in the given list. Names are trimmed
// and upper cased. Unknown names are kept but reported with a warning.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag, len(flags))
	for _, f := range flags {
		flag := Flag(strings.ToUpper(strings.TrimSpace(f)))
		if flag == "" {
			continue
		}

		if !flag.known() {
			logs.WithTag("flag", flag).Warn("unknown feature flag")
		}
		featureFlag[flag] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether the flag is enabled.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when the flag is enabled.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs do when the flag is not enabled.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// Check returns an error when the disabling flag is set.
func (f FeatureFlag) Check(flag Flag) error {
	if !f.IsSet(flag) {
		return nil
	}
	return errors.New("feature is disabled").
		WithType(ErrTypeFeatureDisabled).
		WithTag("flag", flag)
}
