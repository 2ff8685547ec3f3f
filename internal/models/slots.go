package models

import (
	"strings"
	"time"
)

// SlotSource records how a slot value was obtained.
type SlotSource string

const (
	// SlotSourceLLM marks values extracted by the language model.
	SlotSourceLLM SlotSource = "llm"
	// SlotSourceRule marks values extracted by keyword rules.
	SlotSourceRule SlotSource = "rule"
	// SlotSourceUser marks values explicitly stated by the user.
	SlotSourceUser SlotSource = "user"
)

// SlotCategory groups slots for stage-readiness policy.
type SlotCategory string

const (
	// SlotCategoryBasic covers the business fundamentals.
	SlotCategoryBasic SlotCategory = "basic"
	// SlotCategoryGoal covers marketing goals and budget.
	SlotCategoryGoal SlotCategory = "goal"
	// SlotCategoryTarget covers audience information.
	SlotCategoryTarget SlotCategory = "target"
	// SlotCategoryChannel covers marketing channels.
	SlotCategoryChannel SlotCategory = "channel"
)

// slotCategories maps the known consultation fields to their category.
var slotCategories = map[string]SlotCategory{
	"business_type":   SlotCategoryBasic,
	"product":         SlotCategoryBasic,
	"main_goal":       SlotCategoryGoal,
	"budget":          SlotCategoryGoal,
	"target_audience": SlotCategoryTarget,
	"channels":        SlotCategoryChannel,
}

// CategoryForField returns the category of a consultation field. Fields
// outside the known set land in the basic category.
func CategoryForField(field string) SlotCategory {
	if cat, ok := slotCategories[field]; ok {
		return cat
	}
	return SlotCategoryBasic
}

// InfoSlot is one piece of collected consultation information, keyed by
// field name within a conversation.
type InfoSlot struct {
	Field      string       `json:"field"`
	Category   SlotCategory `json:"category"`
	Value      string       `json:"value"`
	Source     SlotSource   `json:"source"`
	Confidence float64      `json:"confidence"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// nullLikeValues are rejected on slot upsert. Comparison is
// case-insensitive after trimming whitespace.
var nullLikeValues = map[string]struct{}{
	"":          {},
	"없음":        {},
	"null":      {},
	"none":      {},
	"undefined": {},
	"n/a":       {},
}

// IsNullLike reports whether v carries no usable information and must not
// overwrite an existing slot value.
func IsNullLike(v string) bool {
	_, ok := nullLikeValues[strings.ToLower(strings.TrimSpace(v))]
	return ok
}
