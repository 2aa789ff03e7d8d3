package types

import "github.com/google/uuid"

// NewOrderUUID generates a fresh client order UUID — the identifier a
// strategy assigns before handing an OrderSubmit to the EMS (spec §3).
// UUID is never derived from anything venue-assigned; it must be unique
// and stable across retries, which a random v4 UUID satisfies.
func NewOrderUUID() string {
	return uuid.NewString()
}

// NewAlgoUUID generates a fresh TWAP parent UUID, prefixed with
// ALGOPrefix so IsAlgoUUID can tell it apart from a plain order UUID
// sharing the same address space.
func NewAlgoUUID() string {
	return ALGOPrefix + uuid.NewString()
}
