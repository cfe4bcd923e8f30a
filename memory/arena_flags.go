package memory

import (
	"fmt"
	"strings"

	"github.com/vkngwrapper/refcount/memutils/metadata"
)

// ArenaCreateFlags adjust the behavior of an ArenaResource
type ArenaCreateFlags int32

var arenaCreateFlagsMapping = map[ArenaCreateFlags]string{
	ArenaCreateExternallySynchronized: "ArenaCreateExternallySynchronized",
	ArenaCreateValidateOnDestroy:      "ArenaCreateValidateOnDestroy",
}

func (f ArenaCreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := ArenaCreateFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}

		name, ok := arenaCreateFlagsMapping[bit]
		if !ok {
			name = fmt.Sprintf("ArenaCreateFlags(%d)", int32(bit))
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// ArenaCreateExternallySynchronized indicates that the caller guarantees the arena is never used
	// from more than one goroutine at a time, so it does not need its own mutex
	ArenaCreateExternallySynchronized ArenaCreateFlags = 1 << iota
	// ArenaCreateValidateOnDestroy runs a full consistency check of the arena's metadata when
	// Destroy is called, and reports the result
	ArenaCreateValidateOnDestroy
)

// ArenaCreateOptions is passed to NewArenaResource. The zero value is a usable configuration.
type ArenaCreateOptions struct {
	Flags ArenaCreateFlags
	// Strategy selects how the arena's metadata chooses among free regions
	Strategy metadata.AllocationStrategy
	// Upstream is where the arena gets the memory for the objects it accounts for. When nil,
	// DefaultResource is used.
	Upstream Resource
}
