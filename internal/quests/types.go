package quests

import (
	"errors"
	"strings"
	"time"

	"questboard.org/internal/ids"
)

// QuestStatus is the lifecycle state of a quest posting.
type QuestStatus string

const (
	StatusOpen      QuestStatus = "open"
	StatusClaimed   QuestStatus = "claimed"
	StatusCompleted QuestStatus = "completed"
)

// Quest is a posted task on the board. OwnerID is the principal that
// created it and the only non-admin allowed to mutate it.
type Quest struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Reward      int64       `json:"reward"` // minor units
	Status      QuestStatus `json:"status"`
	ClaimedBy   string      `json:"claimed_by,omitempty"`
	Sequence    uint64      `json:"sequence"` // monotonic sequence number
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Draft carries the caller-supplied fields of a create or update.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
}

func (d Draft) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrInvalidTitle
	}
	if d.Reward < 0 {
		return ErrInvalidReward
	}
	return nil
}

var (
	ErrNotFound      = errors.New("not found")
	ErrNotOwner      = errors.New("not the quest owner")
	ErrInvalidTitle  = errors.New("invalid title (must be non-blank)")
	ErrInvalidReward = errors.New("invalid reward (must be >= 0)")
	ErrNotOpen       = errors.New("quest is not open")
)

func newID() string {
	return ids.New()
}
