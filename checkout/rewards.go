package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/client"
	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

// CombinedRewardID marks the synthetic reward representing the
// server-reported aggregate balance, as opposed to one earned record.
const CombinedRewardID = "combined"

// RewardManager is the reward reconciliation state machine:
//
//	none --Apply--> pending --Confirm--> confirmed
//	                pending --Restore--> none
//
// Apply writes a durable marker so an interrupted checkout can be
// reconciled on the next load. The server-side balance is always the
// authority; the marker is a hint that reconciliation is owed.
type RewardManager struct {
	mu      sync.Mutex
	client  types.RequestManager
	store   types.KeyValue
	logger  types.Logger
	userID  string
	phase   types.RewardPhase
	applied *types.PendingReward
	balance *types.RewardBalance
}

func NewRewardManager(requestClient types.RequestManager, store types.KeyValue, logger types.Logger, userID string) *RewardManager {
	return &RewardManager{
		client: requestClient,
		store:  store,
		logger: logger,
		userID: userID,
		phase:  types.RewardPhaseNone,
	}
}

// FetchBalance reads the authoritative balance from the rewards
// service. AvailableRewards is the server aggregate and is never
// recomputed from the individual records, so the two cannot drift.
func (r *RewardManager) FetchBalance(ctx context.Context) (*types.RewardBalance, error) {
	body, _, err := r.client.Get(ctx, "/rewards/history/"+r.userID, nil)
	if err != nil {
		return nil, types.WrapError(err, "failed to fetch reward balance")
	}

	balance, err := client.DecodeRewardBalance(body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.balance = balance
	r.mu.Unlock()

	return balance, nil
}

// Available reports the redeemable amount still visible to the UI.
// Zero while a reward is pending so it cannot be applied twice.
func (r *RewardManager) Available() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != types.RewardPhaseNone || r.balance == nil {
		return 0
	}
	return r.balance.AvailableRewards
}

// AppliedAmount is the discount currently reflected in the visible
// order total: the pending reward's amount, or zero.
func (r *RewardManager) AppliedAmount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != types.RewardPhasePending || r.applied == nil {
		return 0
	}
	return r.applied.Amount
}

func (r *RewardManager) Phase() types.RewardPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Apply transitions none -> pending, persisting the durable marker
// before the discount becomes visible.
func (r *RewardManager) Apply(ctx context.Context) (*types.PendingReward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != types.RewardPhaseNone {
		return nil, types.ErrRewardAlreadyApplied
	}

	if r.balance == nil || r.balance.AvailableRewards <= 0 {
		return nil, types.ErrRewardNotAvailable
	}

	marker := &types.PendingReward{
		RewardID:  CombinedRewardID,
		UserID:    r.userID,
		Amount:    r.balance.AvailableRewards,
		AppliedAt: time.Now(),
	}

	if err := r.writeMarker(marker); err != nil {
		return nil, err
	}

	r.applied = marker
	r.phase = types.RewardPhasePending

	r.logger.Info("Reward applied",
		zap.String("user_id", r.userID),
		zap.Int64("amount", marker.Amount))

	return marker, nil
}

// Confirm transitions pending -> confirmed after the order was
// created. A failed redeem call is logged, not retried: the marker is
// left in place so the next load's Resume reconciles against the
// server instead of losing or double-granting the reward.
func (r *RewardManager) Confirm(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != types.RewardPhasePending || r.applied == nil {
		return types.ErrRewardNotApplied
	}

	redeem := types.RedeemRequest{UserID: r.userID, Amount: r.applied.Amount}

	body, _, err := r.client.Post(ctx, "/rewards/redeem", redeem, nil)
	if err == nil {
		var resp types.RedeemResponse
		if decodeErr := utils.Unmarshal(body, &resp); decodeErr != nil || !resp.Success {
			err = types.Errorf(types.ErrRewardRedeemFailed, "service rejected redemption")
		}
	}

	if err != nil {
		r.logger.Error("Reward redemption confirmation failed, marker kept for reconciliation",
			zap.String("user_id", r.userID),
			zap.Int64("amount", r.applied.Amount),
			zap.Error(err))
		return nil
	}

	if clearErr := r.store.Delete(types.KeyPendingReward); clearErr != nil {
		r.logger.Warn("Failed to clear pending reward marker", zap.Error(clearErr))
	}

	r.phase = types.RewardPhaseConfirmed
	if r.balance != nil {
		r.balance.AvailableRewards = 0
	}

	r.logger.Info("Reward confirmed", zap.String("user_id", r.userID))
	return nil
}

// Restore rolls a pending reward back to available after a failed or
// abandoned checkout. The server balance is re-read first, so the
// amount can never leak or double-count across sessions.
func (r *RewardManager) Restore(ctx context.Context) error {
	r.mu.Lock()
	hadPending := r.phase == types.RewardPhasePending
	r.mu.Unlock()

	if !hadPending {
		return nil
	}

	return r.reconcile(ctx)
}

// Resume is the startup entry point: if a durable marker exists for
// this user, reconcile it against the server and reset local state.
func (r *RewardManager) Resume(ctx context.Context) error {
	marker, err := r.readMarker()
	if err != nil {
		return err
	}
	if marker == nil || marker.UserID != r.userID {
		return nil
	}

	r.logger.Info("Found pending reward marker, reconciling",
		zap.String("reward_id", marker.RewardID),
		zap.Int64("amount", marker.Amount),
		zap.Time("applied_at", marker.AppliedAt))

	return r.reconcile(ctx)
}

func (r *RewardManager) reconcile(ctx context.Context) error {
	if _, err := r.FetchBalance(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(types.KeyPendingReward); err != nil {
		r.logger.Warn("Failed to discard pending reward marker", zap.Error(err))
	}

	r.applied = nil
	r.phase = types.RewardPhaseNone

	r.logger.Info("Reward state restored",
		zap.String("user_id", r.userID),
		zap.Int64("available", r.balance.AvailableRewards))

	return nil
}

func (r *RewardManager) writeMarker(marker *types.PendingReward) error {
	data, err := utils.Marshal(marker)
	if err != nil {
		return types.WrapError(err, "failed to encode pending reward marker")
	}
	if err := r.store.Set(types.KeyPendingReward, data); err != nil {
		return types.WrapError(err, "failed to persist pending reward marker")
	}
	return nil
}

func (r *RewardManager) readMarker() (*types.PendingReward, error) {
	data, ok, err := r.store.Get(types.KeyPendingReward)
	if err != nil {
		return nil, types.WrapError(err, "failed to read pending reward marker")
	}
	if !ok {
		return nil, nil
	}

	var marker types.PendingReward
	if err := utils.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("corrupt pending reward marker: %w", err)
	}
	return &marker, nil
}
