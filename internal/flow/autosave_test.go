package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

// failingStore wraps the in-memory store and fails project creation.
type failingStore struct {
	*store.InMemoryStore
}

func (f *failingStore) CreateProjectWithDocument(p models.Project, doc models.ProjectDocument) (int64, error) {
	return 0, errors.New("disk full")
}

func savableContext() *ConversationContext {
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)
	c.UpsertSlot("business_type", "카페", models.SlotSourceRule, 0.5)
	c.UpsertSlot("main_goal", "신규 고객 확보", models.SlotSourceRule, 0.5)
	c.UpsertSlot("channels", "인스타그램", models.SlotSourceRule, 0.5)
	c.UpsertSlot("target_audience", "20대 여성", models.SlotSourceRule, 0.5)
	return c
}

func TestMaybeSaveHappyPath(t *testing.T) {
	st := store.NewInMemoryStore()
	saver := NewAutoSaver(st)
	c := savableContext()

	result := saver.MaybeSave(c, models.CategoryMarketingStrategy, "# 전략\n내용")
	if !result.Saved {
		t.Fatalf("expected save, got %+v", result)
	}
	if !strings.Contains(result.Title, "마케팅 전략 - 카페") {
		t.Errorf("unexpected title %q", result.Title)
	}
	if !strings.HasPrefix(result.FileName, "marketing_strategy_") || !strings.HasSuffix(result.FileName, ".md") {
		t.Errorf("unexpected file name %q", result.FileName)
	}
	if !strings.Contains(result.Notice, "자동 저장") {
		t.Errorf("expected save notice, got %q", result.Notice)
	}
	if !c.AutoSaved {
		t.Error("expected context marked saved")
	}

	projects, err := st.GetProjectsByUser("user-1")
	if err != nil || len(projects) != 1 {
		t.Fatalf("expected 1 saved project, got %d (err %v)", len(projects), err)
	}
	if !strings.Contains(projects[0].Description, "목표: 신규 고객 확보") {
		t.Errorf("expected description from collected info, got %q", projects[0].Description)
	}
}

func TestMaybeSaveAtMostOnce(t *testing.T) {
	st := store.NewInMemoryStore()
	saver := NewAutoSaver(st)
	c := savableContext()

	first := saver.MaybeSave(c, models.CategoryMarketingStrategy, "# 전략")
	if !first.Saved {
		t.Fatal("expected first save to succeed")
	}
	second := saver.MaybeSave(c, models.CategoryMarketingStrategy, "# 전략 v2")
	if second.Saved {
		t.Error("expected second save to be skipped")
	}

	projects, _ := st.GetProjectsByUser("user-1")
	if len(projects) != 1 {
		t.Errorf("expected exactly one project, got %d", len(projects))
	}
}

func TestMaybeSaveDuplicateFromStoreMarksContext(t *testing.T) {
	st := store.NewInMemoryStore()
	saver := NewAutoSaver(st)
	c := savableContext()

	// Another conversation context already saved this conversation.
	other := savableContext()
	if r := saver.MaybeSave(other, models.CategoryMarketingStrategy, "# 전략"); !r.Saved {
		t.Fatal("setup save failed")
	}

	result := saver.MaybeSave(c, models.CategoryMarketingStrategy, "# 전략")
	if result.Saved {
		t.Error("expected store uniqueness to reject the duplicate")
	}
	if !c.AutoSaved {
		t.Error("expected context marked saved after duplicate rejection")
	}
}

func TestMaybeSaveFailureYieldsNotice(t *testing.T) {
	saver := NewAutoSaver(&failingStore{store.NewInMemoryStore()})
	c := savableContext()

	result := saver.MaybeSave(c, models.CategoryMarketingStrategy, "# 전략")
	if result.Saved {
		t.Error("expected failed save")
	}
	if !strings.Contains(result.Notice, "저장되지 않았습니다") {
		t.Errorf("expected failure notice, got %q", result.Notice)
	}
	// A failed save may retry on a later turn.
	if c.AutoSaved {
		t.Error("expected context not marked saved after failure")
	}
}

func TestBuildProjectTitleBusinessPlan(t *testing.T) {
	c := savableContext()
	saver := NewAutoSaver(store.NewInMemoryStore())
	result := saver.MaybeSave(c, models.CategoryBusinessPlan, "# 기획서")
	if !result.Saved {
		t.Fatal("expected save")
	}
	if !strings.Contains(result.Title, "사업 기획서 - 카페") {
		t.Errorf("unexpected business plan title %q", result.Title)
	}
}
