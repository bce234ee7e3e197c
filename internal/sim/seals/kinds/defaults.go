package kinds

import (
	"log"

	"golemcraft.ai/internal/sim/seals"
)

// Prototypes lists the built-in behaviors in registration order.
func Prototypes() []seals.Behavior {
	return []seals.Behavior{
		NewPickup(),
		NewEmpty(),
		NewFill(),
		NewStock(),
		NewProvide(),
		NewGuard(),
		NewButcher(),
		NewHarvest(),
		NewLumber(),
		NewBreaker(),
		NewUse(),
	}
}

// RegisterDefaults registers every built-in behavior. Duplicates are logged by
// the registry and skipped.
func RegisterDefaults(reg *seals.Registry, logger *log.Logger) int {
	n := 0
	for _, b := range Prototypes() {
		if err := reg.Register(b); err != nil {
			if logger != nil {
				logger.Printf("seal bootstrap: %v", err)
			}
			continue
		}
		n++
	}
	return n
}
