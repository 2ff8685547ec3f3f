package store

import (
	"errors"
	"testing"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
)

func TestInMemoryStoreMessages(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		err := s.AddMessage(models.Message{
			ID:             string(rune('a' + i)),
			ConversationID: "conv-1",
			Role:           "user",
			AgentType:      models.AgentMarketing,
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	msgs, err := s.GetRecentMessages("conv-1", 2)
	if err != nil {
		t.Fatalf("GetRecentMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "second" || msgs[1].Content != "third" {
		t.Errorf("expected oldest-first window [second third], got [%s %s]", msgs[0].Content, msgs[1].Content)
	}

	msgs, err = s.GetRecentMessages("missing", 10)
	if err != nil {
		t.Fatalf("GetRecentMessages for unknown conversation failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages for unknown conversation, got %d", len(msgs))
	}
}

func TestInMemoryStoreProjectUniqueness(t *testing.T) {
	s := NewInMemoryStore()
	p := models.Project{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Category:       models.CategoryMarketingStrategy,
		Title:          "마케팅 전략 - 카페 (2026-08-29)",
		CreatedAt:      time.Now(),
	}
	doc := models.ProjectDocument{FileName: "marketing_strategy_20260829_120000.md", Content: "# 전략", CreatedAt: time.Now()}

	id, err := s.CreateProjectWithDocument(p, doc)
	if err != nil {
		t.Fatalf("CreateProjectWithDocument failed: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero project ID")
	}

	_, err = s.CreateProjectWithDocument(p, doc)
	if !errors.Is(err, ErrProjectExists) {
		t.Errorf("expected ErrProjectExists on duplicate save, got %v", err)
	}

	// A different category in the same conversation is a separate save.
	p2 := p
	p2.Category = models.CategoryBusinessPlan
	if _, err := s.CreateProjectWithDocument(p2, doc); err != nil {
		t.Errorf("expected distinct category to save, got %v", err)
	}

	projects, err := s.GetProjectsByUser("user-1")
	if err != nil {
		t.Fatalf("GetProjectsByUser failed: %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("expected 2 projects, got %d", len(projects))
	}
}

func TestInMemoryStorePHQ9Results(t *testing.T) {
	s := NewInMemoryStore()

	if _, err := s.GetLatestPHQ9Result("user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing result, got %v", err)
	}

	first := models.PHQ9Result{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Responses:      []int{1, 1, 1, 1, 1, 1, 1, 1, 0},
		TotalScore:     8,
		SeverityLevel:  2,
		SeverityLabel:  models.PHQ9SeverityLabel(2),
		CompletedAt:    time.Now(),
	}
	if err := s.SavePHQ9Result(first); err != nil {
		t.Fatalf("SavePHQ9Result failed: %v", err)
	}

	second := first
	second.Responses = []int{2, 2, 2, 2, 2, 2, 2, 2, 2}
	second.TotalScore = 18
	second.SeverityLevel = 4
	second.SeverityLabel = models.PHQ9SeverityLabel(4)
	if err := s.SavePHQ9Result(second); err != nil {
		t.Fatalf("SavePHQ9Result overwrite failed: %v", err)
	}

	got, err := s.GetLatestPHQ9Result("user-1")
	if err != nil {
		t.Fatalf("GetLatestPHQ9Result failed: %v", err)
	}
	if got.TotalScore != 18 || got.SeverityLevel != 4 {
		t.Errorf("expected latest result score=18 level=4, got score=%d level=%d", got.TotalScore, got.SeverityLevel)
	}
}

func TestInMemoryStorePruneMessages(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Now()
	for i := 0; i < 4; i++ {
		err := s.AddMessage(models.Message{
			ID:             string(rune('a' + i)),
			ConversationID: "conv-1",
			Role:           "user",
			AgentType:      models.AgentMarketing,
			Content:        "turn",
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	removed, err := s.PruneMessagesBefore(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("PruneMessagesBefore failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 messages pruned, got %d", removed)
	}
	msgs, err := s.GetRecentMessages("conv-1", 10)
	if err != nil {
		t.Fatalf("GetRecentMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages remaining, got %d", len(msgs))
	}

	removed, err = s.PruneMessagesBefore(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneMessagesBefore failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected remaining 2 messages pruned, got %d", removed)
	}
}
