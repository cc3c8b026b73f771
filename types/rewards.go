package types

import (
	"time"
)

// RewardPhase tracks the reconciliation state machine for a checkout
// discount: none applied, applied but not confirmed server-side, or
// confirmed (terminal).
type RewardPhase int32

const (
	RewardPhaseNone RewardPhase = iota
	RewardPhasePending
	RewardPhaseConfirmed
)

func (p RewardPhase) String() string {
	switch p {
	case RewardPhaseNone:
		return "none"
	case RewardPhasePending:
		return "pending"
	case RewardPhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

type RewardRecord struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	Source    string    `json:"source,omitempty"`
	Redeemed  bool      `json:"redeemed"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// RewardBalance is the rewards service's view of a user. Available is
// the server-reported aggregate; it is authoritative and is never
// recomputed client-side from Records.
type RewardBalance struct {
	AvailableRewards int64          `json:"availableRewards"`
	Rewards          []RewardRecord `json:"rewards"`
}

// PendingReward is the durable marker written when a reward is applied
// and cleared when the checkout confirms. Survives process restarts so
// an interrupted checkout never loses the reward.
type PendingReward struct {
	RewardID  string    `json:"rewardId"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	AppliedAt time.Time `json:"appliedAt"`
}

type RedeemRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

type RedeemResponse struct {
	Success bool `json:"success"`
}
