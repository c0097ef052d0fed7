package featureflag

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	f := New([]string{" disable_merge", "", "DISABLE_TOPOLOGY_BROADCAST"})

	require.Len(t, f, 2)
	require.True(t, f.IsSet(FlagDisableMerge))
	require.True(t, f.IsSet(FlagDisableTopologyBroadcast))
	require.False(t, f.IsSet(FlagDisableParallelFixups))
}

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisableParallelFixups)})

	t.Run("run if enabled", func(t *testing.T) {
		var runParallel bool
		f.IfSet(FlagDisableParallelFixups, func() {
			runParallel = true
		})
		require.True(t, runParallel)

		var runMerge bool
		f.IfSet(FlagDisableMerge, func() {
			runMerge = true
		})
		require.False(t, runMerge)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runParallel bool
		f.IfNotSet(FlagDisableParallelFixups, func() {
			runParallel = true
		})
		require.False(t, runParallel)

		var runMerge bool
		f.IfNotSet(FlagDisableMerge, func() {
			runMerge = true
		})
		require.True(t, runMerge)
	})

	t.Run("unknown flags are kept", func(t *testing.T) {
		f := New([]string{"EXPERIMENTAL"})
		require.True(t, f.IsSet("EXPERIMENTAL"))
	})
}

func TestFeatureFlagCheck(t *testing.T) {
	f := New([]string{string(FlagDisableMerge)})

	err := f.Check(FlagDisableMerge)
	require.Error(t, err)
	require.Equal(t, ErrTypeFeatureDisabled, errors.Type(err))

	require.NoError(t, f.Check(FlagDisableTopologyBroadcast))
}
