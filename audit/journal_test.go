package audit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakevault/core/events"
)

func TestJournalRecordsEvents(t *testing.T) {
	journal, err := Open(":memory:", nil)
	require.NoError(t, err)

	owner := [20]byte{0xaa}
	journal.Emit(events.StakeCreated{
		Owner:      owner,
		StakeIndex: 0,
		Amount:     big.NewInt(1000),
		TierID:     2,
		Timestamp:  1_700_000_000,
	})
	journal.Emit(events.RewardClaimed{
		Owner:      owner,
		StakeIndex: 0,
		Reward:     big.NewInt(42),
		Timestamp:  1_700_000_100,
	})

	records, err := journal.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, events.TypeRewardClaimed, records[0].EventType)
	require.Equal(t, "42", records[0].Reward)
	require.Equal(t, events.TypeStakeCreated, records[1].EventType)
	require.Equal(t, "1000", records[1].Amount)
	require.Equal(t, uint8(2), records[1].Tier)
}

func TestJournalByOwnerFilters(t *testing.T) {
	journal, err := Open(":memory:", nil)
	require.NoError(t, err)

	alice := [20]byte{0x01}
	bob := [20]byte{0x02}
	journal.Emit(events.StakeCreated{Owner: alice, Amount: big.NewInt(1)})
	journal.Emit(events.StakeCreated{Owner: bob, Amount: big.NewInt(2)})
	journal.Emit(events.EmergencyExit{Owner: alice, Amount: big.NewInt(1)})

	records, err := journal.ByOwner(alice, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		require.Equal(t, "0100000000000000000000000000000000000000", record.Owner)
	}
}
