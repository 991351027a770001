package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"stakevault/native/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/state"
	"stakevault/storage"
)

const testJWTSecret = "test-admin-secret"

type rpcHarness struct {
	server *httptest.Server
	clock  *clockwork.FakeClock
	pauses *nativecommon.PauseSet
}

func newRPCHarness(t *testing.T) *rpcHarness {
	t.Helper()

	manager := state.NewManager(storage.NewMemDB())
	vault := [20]byte{0xff}
	stakeLedger := bank.NewLedger(manager, "STK", vault)
	rewardLedger := bank.NewLedger(manager, "RWD", vault)
	require.NoError(t, rewardLedger.Mint(vault, big.NewInt(1_000_000_000)))

	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	pauses := nativecommon.NewPauseSet()

	engine := staking.NewEngine()
	engine.SetState(manager)
	engine.SetAssets(stakeLedger, rewardLedger)
	engine.SetClock(clock)
	engine.SetPauses(pauses)
	require.NoError(t, engine.SetRewardRate(big.NewInt(100)))

	// Seed the caller with stakeable funds.
	require.NoError(t, stakeLedger.Mint(addr(0x01), big.NewInt(1_000_000)))

	server := NewServer(engine, pauses, Config{JWTSecret: testJWTSecret}, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return &rpcHarness{server: ts, clock: clock, pauses: pauses}
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func addrString(b byte) string {
	return fmt.Sprintf("0x%02x%s", b, "00000000000000000000000000000000000000")
}

func (h *rpcHarness) call(t *testing.T, method string, params interface{}, token string) (json.RawMessage, *RPCError) {
	t.Helper()

	var rawParams []json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		require.NoError(t, err)
		rawParams = []json.RawMessage{encoded}
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.server.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded.Result, decoded.Error
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func TestDepositClaimRoundTrip(t *testing.T) {
	h := newRPCHarness(t)

	result, rpcErr := h.call(t, "stake_deposit", depositParams{
		Owner:  addrString(0x01),
		Amount: "1000",
		Tier:   1,
	}, "")
	require.Nil(t, rpcErr)
	var deposit depositResult
	require.NoError(t, json.Unmarshal(result, &deposit))
	require.Equal(t, uint64(0), deposit.StakeIndex)

	h.clock.Advance(10 * time.Second)

	result, rpcErr = h.call(t, "stake_pendingReward", stakeRefParams{
		Owner:      addrString(0x01),
		StakeIndex: 0,
	}, "")
	require.Nil(t, rpcErr)
	var pending pendingResult
	require.NoError(t, json.Unmarshal(result, &pending))
	require.Equal(t, "1000", pending.Pending)

	result, rpcErr = h.call(t, "stake_claim", stakeRefParams{
		Owner:      addrString(0x01),
		StakeIndex: 0,
	}, "")
	require.Nil(t, rpcErr)
	var claim claimResult
	require.NoError(t, json.Unmarshal(result, &claim))
	require.Equal(t, "1000", claim.Reward)
}

func TestPositionAndPoolQueries(t *testing.T) {
	h := newRPCHarness(t)

	_, rpcErr := h.call(t, "stake_deposit", depositParams{
		Owner:  addrString(0x01),
		Amount: "2500",
		Tier:   2,
	}, "")
	require.Nil(t, rpcErr)

	result, rpcErr := h.call(t, "stake_position", addrString(0x01), "")
	require.Nil(t, rpcErr)
	var position positionResult
	require.NoError(t, json.Unmarshal(result, &position))
	require.Equal(t, "2500", position.ActiveStaked)
	require.Len(t, position.Stakes, 1)

	result, rpcErr = h.call(t, "stake_pool", nil, "")
	require.Nil(t, rpcErr)
	var pool staking.PoolInfo
	require.NoError(t, json.Unmarshal(result, &pool))
	require.Equal(t, "2500", pool.TotalStaked.String())
}

func TestTiersQuery(t *testing.T) {
	h := newRPCHarness(t)

	result, rpcErr := h.call(t, "stake_tiers", nil, "")
	require.Nil(t, rpcErr)
	var tiers []staking.Tier
	require.NoError(t, json.Unmarshal(result, &tiers))
	require.Len(t, tiers, 4)
	require.Equal(t, uint64(200), tiers[3].Multiplier)
}

func TestEarlyWithdrawRejected(t *testing.T) {
	h := newRPCHarness(t)

	_, rpcErr := h.call(t, "stake_deposit", depositParams{
		Owner:  addrString(0x01),
		Amount: "1000",
		Tier:   1,
	}, "")
	require.Nil(t, rpcErr)

	_, rpcErr = h.call(t, "stake_withdraw", stakeRefParams{
		Owner:      addrString(0x01),
		StakeIndex: 0,
	}, "")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeInvalidParams, rpcErr.Code)
}

func TestAdminMethodsRequireToken(t *testing.T) {
	h := newRPCHarness(t)

	_, rpcErr := h.call(t, "stake_setRewardRate", rateParams{RatePerSec: "250"}, "")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeUnauthorized, rpcErr.Code)

	_, rpcErr = h.call(t, "stake_setRewardRate", rateParams{RatePerSec: "250"}, "not-a-jwt")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeUnauthorized, rpcErr.Code)

	result, rpcErr := h.call(t, "stake_setRewardRate", rateParams{RatePerSec: "250"}, adminToken(t))
	require.Nil(t, rpcErr)
	var rateResp map[string]string
	require.NoError(t, json.Unmarshal(result, &rateResp))
	require.Equal(t, "250", rateResp["ratePerSec"])
}

func TestPauseBlocksDeposits(t *testing.T) {
	h := newRPCHarness(t)
	token := adminToken(t)

	_, rpcErr := h.call(t, "stake_pause", nil, token)
	require.Nil(t, rpcErr)

	_, rpcErr = h.call(t, "stake_deposit", depositParams{
		Owner:  addrString(0x01),
		Amount: "1000",
		Tier:   1,
	}, "")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeModulePaused, rpcErr.Code)

	_, rpcErr = h.call(t, "stake_unpause", nil, token)
	require.Nil(t, rpcErr)

	_, rpcErr = h.call(t, "stake_deposit", depositParams{
		Owner:  addrString(0x01),
		Amount: "1000",
		Tier:   1,
	}, "")
	require.Nil(t, rpcErr)
}

func TestUnknownMethod(t *testing.T) {
	h := newRPCHarness(t)

	_, rpcErr := h.call(t, "stake_unknown", nil, "")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeMethodNotFound, rpcErr.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newRPCHarness(t)

	resp, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, false, body["paused"])
}
