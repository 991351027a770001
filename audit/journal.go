package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stakevault/core/events"
)

// Record is a single journaled staking event. Amounts are stored as decimal
// strings so arbitrary-precision values survive the round trip.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType  string    `gorm:"size:64;index"`
	Owner      string    `gorm:"size:40;index"`
	StakeIndex uint64
	Amount     string `gorm:"size:80"`
	Reward     string `gorm:"size:80"`
	Tier       uint8
	Details    string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Journal persists every emitted staking event into a SQLite-backed audit
// trail. Write failures are logged and swallowed so an unavailable journal
// never blocks settlement.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open creates (or reuses) the journal database at path and runs migrations.
// Use ":memory:" for an ephemeral journal in tests.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Journal{db: db, logger: log}, nil
}

// Emit implements the events.Emitter interface.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	record := Record{
		ID:        uuid.New(),
		EventType: evt.EventType(),
		CreatedAt: time.Now().UTC(),
	}
	switch e := evt.(type) {
	case events.StakeCreated:
		record.Owner = hex.EncodeToString(e.Owner[:])
		record.StakeIndex = e.StakeIndex
		record.Amount = bigString(e.Amount)
		record.Tier = e.TierID
	case events.StakeClosed:
		record.Owner = hex.EncodeToString(e.Owner[:])
		record.StakeIndex = e.StakeIndex
		record.Amount = bigString(e.Amount)
		record.Reward = bigString(e.Reward)
	case events.RewardClaimed:
		record.Owner = hex.EncodeToString(e.Owner[:])
		record.StakeIndex = e.StakeIndex
		record.Reward = bigString(e.Reward)
	case events.EmergencyExit:
		record.Owner = hex.EncodeToString(e.Owner[:])
		record.StakeIndex = e.StakeIndex
		record.Amount = bigString(e.Amount)
	}
	if details, err := json.Marshal(evt); err == nil {
		record.Details = string(details)
	}
	if err := j.db.Create(&record).Error; err != nil {
		j.logger.Error("audit journal write failed", "event", record.EventType, "err", err)
	}
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := j.db.Order("created_at desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return records, nil
}

// ByOwner returns up to limit records for a single participant, newest first.
func (j *Journal) ByOwner(owner [20]byte, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := j.db.Where("owner = ?", hex.EncodeToString(owner[:])).
		Order("created_at desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return records, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
