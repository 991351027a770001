package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
)

const stakingModulePausedMessage = "staking module paused"

type depositParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
	Tier   uint8  `json:"tier"`
}

type stakeRefParams struct {
	Owner      string `json:"owner"`
	StakeIndex uint64 `json:"stakeIndex"`
}

type rateParams struct {
	RatePerSec string `json:"ratePerSec"`
}

type tierParams struct {
	Tier         uint8  `json:"tier"`
	LockDuration uint64 `json:"lockDuration"`
}

type auditRecentParams struct {
	Limit int `json:"limit"`
}

type depositResult struct {
	StakeIndex uint64 `json:"stakeIndex"`
}

type claimResult struct {
	Reward string `json:"reward"`
}

type withdrawResult struct {
	Principal string `json:"principal"`
	Reward    string `json:"reward"`
}

type emergencyResult struct {
	Principal string `json:"principal"`
}

type pendingResult struct {
	Pending string `json:"pending"`
}

type positionResult struct {
	Address         string              `json:"address"`
	ActiveStaked    string              `json:"activeStaked"`
	LifetimeRewards string              `json:"lifetimeRewards"`
	Stakes          []staking.StakeInfo `json:"stakes"`
}

func parseOwner(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid owner address: %w", err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("owner address must be %d bytes", len(out))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}

func decodeSingleParam(params []json.RawMessage, target interface{}) error {
	if len(params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	if err := json.Unmarshal(params[0], target); err != nil {
		return fmt.Errorf("invalid parameter object")
	}
	return nil
}

func writeEngineError(w http.ResponseWriter, id interface{}, action string, err error) {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codeModulePaused, stakingModulePausedMessage, nil)
	case errors.Is(err, staking.ErrStakeNotFound),
		errors.Is(err, staking.ErrStakeNotActive),
		errors.Is(err, staking.ErrStakeLocked),
		errors.Is(err, staking.ErrNoRewardAvailable),
		errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrInvalidTier),
		errors.Is(err, staking.ErrInvalidRate):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, action, err.Error())
	case errors.Is(err, staking.ErrTransferFailed):
		writeError(w, http.StatusBadRequest, id, codeServerError, action, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, action, err.Error())
	}
}

func (s *Server) handleDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params depositParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseOwner(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	index, err := s.engine.Deposit(owner, amount, params.Tier)
	if err != nil {
		writeEngineError(w, req.ID, "failed to deposit", err)
		return
	}
	writeResult(w, req.ID, depositResult{StakeIndex: index})
}

func (s *Server) handleClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeRefParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseOwner(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	reward, err := s.engine.Claim(owner, params.StakeIndex)
	if err != nil {
		writeEngineError(w, req.ID, "failed to claim reward", err)
		return
	}
	writeResult(w, req.ID, claimResult{Reward: reward.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeRefParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseOwner(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	principal, reward, err := s.engine.Withdraw(owner, params.StakeIndex)
	if err != nil {
		writeEngineError(w, req.ID, "failed to withdraw", err)
		return
	}
	writeResult(w, req.ID, withdrawResult{
		Principal: principal.String(),
		Reward:    reward.String(),
	})
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeRefParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseOwner(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	principal, err := s.engine.EmergencyWithdraw(owner, params.StakeIndex)
	if err != nil {
		writeEngineError(w, req.ID, "failed to emergency withdraw", err)
		return
	}
	writeResult(w, req.ID, emergencyResult{Principal: principal.String()})
}

func (s *Server) handlePendingReward(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeRefParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseOwner(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pending, err := s.engine.PendingReward(owner, params.StakeIndex)
	if err != nil {
		writeEngineError(w, req.ID, "failed to compute pending reward", err)
		return
	}
	writeResult(w, req.ID, pendingResult{Pending: pending.String()})
}

func (s *Server) handlePosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "owner address parameter required", nil)
		return
	}
	var ownerStr string
	if err := json.Unmarshal(req.Params[0], &ownerStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner parameter", nil)
		return
	}
	owner, err := parseOwner(ownerStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	info, err := s.engine.ParticipantSnapshot(owner)
	if err != nil {
		writeEngineError(w, req.ID, "failed to load position", err)
		return
	}
	writeResult(w, req.ID, positionResult{
		Address:         "0x" + hex.EncodeToString(owner[:]),
		ActiveStaked:    info.ActiveStaked.String(),
		LifetimeRewards: info.LifetimeRewards.String(),
		Stakes:          info.Stakes,
	})
}

func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	info, err := s.engine.PoolSnapshot()
	if err != nil {
		writeEngineError(w, req.ID, "failed to load pool", err)
		return
	}
	writeResult(w, req.ID, info)
}

func (s *Server) handleTiers(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, s.engine.Tiers())
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.audit == nil {
		writeError(w, http.StatusNotImplemented, req.ID, codeServerError, "audit journal not configured", nil)
		return
	}
	params := auditRecentParams{Limit: 50}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", nil)
			return
		}
	}
	records, err := s.audit.Recent(params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to query audit journal", err.Error())
		return
	}
	writeResult(w, req.ID, records)
}

func (s *Server) handleSetRewardRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params rateParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	trimmed := strings.TrimSpace(params.RatePerSec)
	rate, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || rate.Sign() < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid reward rate", nil)
		return
	}
	if err := s.engine.SetRewardRate(rate); err != nil {
		writeEngineError(w, req.ID, "failed to set reward rate", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"ratePerSec": rate.String()})
}

func (s *Server) handleSetTierLockDuration(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tierParams
	if err := decodeSingleParam(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.UpdateTierLockDuration(params.Tier, params.LockDuration); err != nil {
		writeEngineError(w, req.ID, "failed to update tier", err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"lockDuration": params.LockDuration})
}
