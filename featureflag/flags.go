package featureflag

type Flag string

const (
	// Runs neighbor fix-ups on a single goroutine regardless of batch size.
	FlagDisableParallelFixups Flag = "DISABLE_PARALLEL_FIXUPS"

	// Stops pushing topology events to realtime clients that joined a world.
	FlagDisableTopologyBroadcast Flag = "DISABLE_TOPOLOGY_BROADCAST"

	// Rejects merge requests. Worlds can only be refined.
	FlagDisableMerge Flag = "DISABLE_MERGE"
)

// Flags lists the known flags.
var Flags = []Flag{
	FlagDisableParallelFixups,
	FlagDisableTopologyBroadcast,
	FlagDisableMerge,
}

func (f Flag) known() bool {
	for _, k := range Flags {
		if k == f {
			return true
		}
	}
	return false
}
