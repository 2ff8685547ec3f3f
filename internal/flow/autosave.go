package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

// Auto-save notice texts surfaced inside the chat answer.
const (
	saveNoticeFormat  = "\n\n📁 상담 내용이 자동 저장되었습니다: %s"
	saveFailureNotice = "\n\n(참고: 상담 내용 저장 중 문제가 발생하여 저장되지 않았습니다. 대화는 계속 이용하실 수 있어요.)"
)

// AutoSaver persists a finalized consultation as a project exactly once per
// conversation and category. Save failures surface as a notice in the chat
// answer and never fail the turn.
type AutoSaver struct {
	store store.Store
}

// NewAutoSaver creates an AutoSaver backed by the given store.
func NewAutoSaver(st store.Store) *AutoSaver {
	return &AutoSaver{store: st}
}

// MaybeSave persists the document for the conversation unless a save has
// already happened. Callers must hold the context lock.
func (a *AutoSaver) MaybeSave(c *ConversationContext, category models.ProjectCategory, document string) models.ProjectSaveResult {
	if c.AutoSaved {
		return models.ProjectSaveResult{Saved: false}
	}
	if a.store == nil {
		slog.Debug("AutoSaver.MaybeSave: no store configured", "conversationID", c.ConversationID)
		return models.ProjectSaveResult{Saved: false}
	}

	now := time.Now()
	title := buildProjectTitle(category, c.CollectedInfo(), now)
	fileName := fmt.Sprintf("%s_%s.md", category, now.Format("20060102_150405"))
	description := buildProjectDescription(c.CollectedInfo())

	project := models.Project{
		UserID:         c.UserID,
		ConversationID: c.ConversationID,
		Category:       category,
		Title:          title,
		Description:    description,
		CreatedAt:      now,
	}
	doc := models.ProjectDocument{
		FileName:  fileName,
		Content:   document,
		CreatedAt: now,
	}

	projectID, err := a.store.CreateProjectWithDocument(project, doc)
	if errors.Is(err, store.ErrProjectExists) {
		// Another turn won the race; the conversation is saved either way.
		c.AutoSaved = true
		slog.Debug("AutoSaver.MaybeSave: project already saved", "conversationID", c.ConversationID, "category", category)
		return models.ProjectSaveResult{Saved: false}
	}
	if err != nil {
		slog.Error("AutoSaver.MaybeSave: save failed", "error", err, "conversationID", c.ConversationID, "category", category)
		return models.ProjectSaveResult{Saved: false, Notice: saveFailureNotice}
	}

	c.AutoSaved = true
	slog.Debug("AutoSaver.MaybeSave: project saved", "conversationID", c.ConversationID, "projectID", projectID, "title", title)
	return models.ProjectSaveResult{
		Saved:     true,
		ProjectID: projectID,
		Title:     title,
		FileName:  fileName,
		Notice:    fmt.Sprintf(saveNoticeFormat, title),
	}
}

// buildProjectTitle names the saved project after the business and date.
func buildProjectTitle(category models.ProjectCategory, info map[string]string, now time.Time) string {
	business := info["business_type"]
	if business == "" {
		business = "내 비즈니스"
	}
	date := now.Format("2006-01-02")
	if category == models.CategoryBusinessPlan {
		return fmt.Sprintf("사업 기획서 - %s (%s)", business, date)
	}
	return fmt.Sprintf("마케팅 전략 - %s (%s)", business, date)
}

// buildProjectDescription summarizes up to three collected fields.
func buildProjectDescription(info map[string]string) string {
	var parts []string
	if v := info["main_goal"]; v != "" {
		parts = append(parts, "목표: "+v)
	}
	if v := info["channels"]; v != "" {
		parts = append(parts, "채널: "+v)
	}
	if v := info["target_audience"]; v != "" {
		parts = append(parts, "타겟: "+v)
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, " | ")
}
