package staking

const (
	daySeconds = 24 * 60 * 60

	// TierMin and TierMax bound the supported tier identifiers.
	TierMin uint8 = 1
	TierMax uint8 = 4
)

// Tier binds a lock duration to the reward multiplier granted for accepting
// it. Both values are fixed into each stake at deposit time; later tier
// changes never touch existing stakes.
type Tier struct {
	ID           uint8  `json:"id"`
	LockDuration uint64 `json:"lockDuration"`
	Multiplier   uint64 `json:"multiplier"`
}

func defaultTiers() map[uint8]Tier {
	return map[uint8]Tier{
		1: {ID: 1, LockDuration: 7 * daySeconds, Multiplier: 100},
		2: {ID: 2, LockDuration: 30 * daySeconds, Multiplier: 125},
		3: {ID: 3, LockDuration: 90 * daySeconds, Multiplier: 150},
		4: {ID: 4, LockDuration: 365 * daySeconds, Multiplier: 200},
	}
}

// Tiers returns the current tier table ordered by identifier.
func (e *Engine) Tiers() []Tier {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Tier, 0, len(e.tiers))
	for id := TierMin; id <= TierMax; id++ {
		if tier, ok := e.tiers[id]; ok {
			out = append(out, tier)
		}
	}
	return out
}

func (e *Engine) lookupTier(id uint8) (Tier, bool) {
	tier, ok := e.tiers[id]
	return tier, ok
}
