package flow

import (
	"math"
	"testing"

	"github.com/modubiz/ConsultFlow/internal/models"
)

func TestCompletionRate(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	if got := tracker.CompletionRate(models.StageInitial, c.Slots); got != 0 {
		t.Errorf("expected empty completion 0, got %v", got)
	}

	c.UpsertSlot("business_type", "카페", models.SlotSourceRule, 0.5)
	if got := tracker.CompletionRate(models.StageInitial, c.Slots); got != 0.5 {
		t.Errorf("expected half completion, got %v", got)
	}

	c.UpsertSlot("product", "라떼랑 디저트", models.SlotSourceRule, 0.5)
	if got := tracker.CompletionRate(models.StageInitial, c.Slots); got != 1.0 {
		t.Errorf("expected full completion, got %v", got)
	}
}

func TestCompletionRateMonotonicOverFilling(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	fields := []string{"business_type", "product", "main_goal", "target_audience", "budget", "channels"}
	prev := 0.0
	for _, field := range fields {
		c.UpsertSlot(field, "값", models.SlotSourceRule, 0.5)
		got := tracker.OverallCompletionRate(c.Slots)
		if got < prev {
			t.Fatalf("overall completion decreased from %v to %v after filling %s", prev, got, field)
		}
		prev = got
	}
	if math.Abs(prev-1.0) > 1e-9 {
		t.Errorf("expected full overall completion, got %v", prev)
	}
}

func TestOverallCompletionRateWeighted(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	// INITIAL carries weight 2.0 of 6.5 total; CONTENT_CREATION shares its
	// fields, adding another 0.5.
	c.UpsertSlot("business_type", "카페", models.SlotSourceRule, 0.5)
	c.UpsertSlot("product", "디저트", models.SlotSourceRule, 0.5)

	want := (2.0 + 0.5) / 6.5
	if got := tracker.OverallCompletionRate(c.Slots); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected weighted overall %v, got %v", want, got)
	}
}

func TestAdvanceIfReady(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	if tracker.AdvanceIfReady(c) {
		t.Error("expected no advance with empty slots")
	}
	if c.Stage != models.StageInitial {
		t.Errorf("expected stage to stay INITIAL, got %s", c.Stage)
	}

	c.UpsertSlot("business_type", "카페", models.SlotSourceRule, 0.5)
	// 1 of 2 required fields is below the 0.8 threshold.
	if tracker.AdvanceIfReady(c) {
		t.Error("expected no advance below threshold")
	}

	c.UpsertSlot("product", "라떼랑 디저트", models.SlotSourceRule, 0.5)
	if !tracker.AdvanceIfReady(c) {
		t.Fatal("expected advance with all required fields")
	}
	if c.Stage != models.StageGoalSetting {
		t.Errorf("expected GOAL_SETTING, got %s", c.Stage)
	}
}

func TestStagesOnlyMoveForward(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	for _, field := range []string{"business_type", "product", "main_goal", "target_audience", "budget", "channels"} {
		c.UpsertSlot(field, "값", models.SlotSourceRule, 0.5)
	}

	prevIdx := models.StageIndex(models.MarketingStageOrder, c.Stage)
	for i := 0; i < 10; i++ {
		tracker.AdvanceIfReady(c)
		idx := models.StageIndex(models.MarketingStageOrder, c.Stage)
		if idx < prevIdx {
			t.Fatalf("stage moved backwards from %d to %d", prevIdx, idx)
		}
		prevIdx = idx
	}
	if c.Stage != models.StageCompleted {
		t.Errorf("expected COMPLETED after repeated advances, got %s", c.Stage)
	}
}

func TestMissingRequired(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)
	c.UpsertSlot("business_type", "카페", models.SlotSourceRule, 0.5)

	missing := tracker.MissingRequired(models.StageInitial, c.Slots)
	if len(missing) != 1 || missing[0] != "product" {
		t.Errorf("expected [product], got %v", missing)
	}
}

func TestSortedMissingCapsAtLimit(t *testing.T) {
	tracker := NewStageTracker(MarketingPolicy())
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	missing := tracker.SortedMissing(c, 2)
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %d: %v", len(missing), missing)
	}
	if missing[0] != "business_type" || missing[1] != "product" {
		t.Errorf("expected current-stage fields first, got %v", missing)
	}

	c.UpsertSlot("business_type", "카페", models.SlotSourceRule, 0.5)
	c.UpsertSlot("product", "디저트", models.SlotSourceRule, 0.5)
	missing = tracker.SortedMissing(c, 2)
	if len(missing) != 2 || missing[0] != "main_goal" {
		t.Errorf("expected later-stage fields once current is satisfied, got %v", missing)
	}
}

func TestMentalHealthPolicyOrderWalk(t *testing.T) {
	tracker := NewStageTracker(MentalHealthPolicy())

	// Counseling declares no required slots, so every stage reads complete
	// and the order alone governs transitions.
	if rate := tracker.CompletionRate(models.StageAssessment, nil); rate != 1.0 {
		t.Errorf("expected completion 1.0 for stage without required slots, got %f", rate)
	}

	stage := models.StageInitial
	steps := 0
	for {
		next, ok := tracker.NextStage(stage)
		if !ok {
			break
		}
		stage = next
		steps++
	}
	if stage != models.StageCompleted {
		t.Errorf("expected walk to end at COMPLETED, got %s", stage)
	}
	if steps != len(models.MentalHealthStageOrder)-1 {
		t.Errorf("expected %d transitions, got %d", len(models.MentalHealthStageOrder)-1, steps)
	}
}
