package logging

import (
	"encoding/hex"
	"log/slog"

	"stakevault/core/events"
)

// EventSink logs every staking event at info level as a structured record.
type EventSink struct {
	logger *slog.Logger
}

// NewEventSink returns an emitter writing to the supplied logger, or the
// default logger when nil.
func NewEventSink(logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{logger: logger}
}

// Emit implements the events.Emitter interface.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	switch e := evt.(type) {
	case events.StakeCreated:
		s.logger.Info("stake created",
			"event", e.EventType(),
			"owner", hex.EncodeToString(e.Owner[:]),
			"stakeIndex", e.StakeIndex,
			"amount", e.Amount.String(),
			"tier", e.TierID,
			"lockDuration", e.LockDuration,
		)
	case events.StakeClosed:
		s.logger.Info("stake closed",
			"event", e.EventType(),
			"owner", hex.EncodeToString(e.Owner[:]),
			"stakeIndex", e.StakeIndex,
			"amount", e.Amount.String(),
			"reward", e.Reward.String(),
		)
	case events.RewardClaimed:
		s.logger.Info("reward claimed",
			"event", e.EventType(),
			"owner", hex.EncodeToString(e.Owner[:]),
			"stakeIndex", e.StakeIndex,
			"reward", e.Reward.String(),
		)
	case events.EmergencyExit:
		s.logger.Warn("emergency exit",
			"event", e.EventType(),
			"owner", hex.EncodeToString(e.Owner[:]),
			"stakeIndex", e.StakeIndex,
			"amount", e.Amount.String(),
		)
	case events.RewardRateChanged:
		s.logger.Info("reward rate changed",
			"event", e.EventType(),
			"oldRate", e.OldRate.String(),
			"newRate", e.NewRate.String(),
		)
	case events.TierUpdated:
		s.logger.Info("tier updated",
			"event", e.EventType(),
			"tier", e.TierID,
			"oldLockDuration", e.OldLockDuration,
			"newLockDuration", e.NewLockDuration,
		)
	default:
		s.logger.Info("staking event", "event", evt.EventType())
	}
}
