package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/models"
	"github.com/modubiz/ConsultFlow/internal/store"
)

const marketingSystemPrompt = `당신은 소상공인을 돕는 친근한 마케팅 컨설턴트입니다.
사용자의 비즈니스 상황에 공감하며 실행 가능한 조언을 한국어로 제공하세요.
답변은 3~5문장으로 간결하게 유지하세요.`

// finalizeKeywords request the full strategy regardless of completion rate.
var finalizeKeywords = []string{"전략", "완료", "전체", "종합"}

// negativeReplyKeywords mark dismissive user replies for engagement tracking.
var negativeReplyKeywords = []string{"몰라", "글쎄", "그냥", "됐어", "별로", "귀찮"}

// Question fatigue limits. Past either limit the engine stops asking
// clarifying questions and leads with advice instead.
const (
	maxConsecutiveQuestions = 3
	maxNegativeSignals      = 2
)

// clarifyQuestions maps a missing field to the question that collects it.
var clarifyQuestions = map[string]string{
	"business_type":   "어떤 업종의 비즈니스를 운영하고 계세요?",
	"product":         "주로 어떤 상품이나 서비스를 판매하세요?",
	"main_goal":       "마케팅으로 이루고 싶은 가장 중요한 목표는 무엇인가요?",
	"target_audience": "주요 고객층은 어떻게 되나요?",
	"budget":          "월 마케팅 예산은 어느 정도 생각하고 계세요?",
	"channels":        "어떤 채널(인스타그램, 블로그 등)을 활용하고 싶으세요?",
}

// MarketingEngine drives marketing consultations: slot collection, staged
// progress, content generation and the final auto-saved strategy.
type MarketingEngine struct {
	contexts   *ContextManager
	tracker    *StageTracker
	classifier *IntentClassifier
	extractor  *SlotExtractor
	saver      *AutoSaver
	content    *ContentRegistry
	client     genai.ClientInterface
	store      store.Store
}

// NewMarketingEngine wires a marketing engine. Both store and client may be
// nil; the engine then runs on rules and fixed fallbacks.
func NewMarketingEngine(st store.Store, client genai.ClientInterface) *MarketingEngine {
	return &MarketingEngine{
		contexts:   NewContextManager(DefaultContextTTL),
		tracker:    NewStageTracker(MarketingPolicy()),
		classifier: NewIntentClassifier(client),
		extractor:  NewSlotExtractor(client),
		saver:      NewAutoSaver(st),
		content:    NewContentRegistry(client),
		client:     client,
		store:      st,
	}
}

// Close stops the background context eviction.
func (e *MarketingEngine) Close() {
	e.contexts.Stop()
}

// Stats reports live conversation counts for the status endpoint.
func (e *MarketingEngine) Stats() models.EngineStats {
	return models.EngineStats{ActiveConversations: e.contexts.Len()}
}

// HandleMessage processes one marketing turn.
func (e *MarketingEngine) HandleMessage(ctx context.Context, userID, conversationID, message string) (*models.QueryResult, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	c := e.contexts.GetOrCreate(userID, conversationID, models.AgentMarketing)
	c.Lock()
	defer c.Unlock()

	e.persistMessage(c, "user", message)
	c.AppendHistory("user", message)
	e.updateEngagement(c, message)

	intent := e.classifier.Classify(ctx, message, c.Stage)
	slog.Debug("MarketingEngine.HandleMessage: intent classified", "conversationID", conversationID, "intent", intent.Intent, "sentiment", intent.Sentiment)

	e.extractor.Extract(ctx, c, message)
	e.tracker.AdvanceIfReady(c)

	info := c.CollectedInfo()
	var reply string
	var saveResult models.ProjectSaveResult

	ct, wantsContent := e.requestedContent(intent, message)
	switch {
	case wantsContent:
		if info["business_type"] == "" || info["product"] == "" {
			// Content generation needs the basics first. Remember the
			// request and ask; a later turn resumes it once both arrive.
			c.ContentPending = ct
			reply = e.converse(ctx, c, message)
		} else {
			c.ContentPending = ""
			reply = e.generateContent(ctx, ct, message, info)
		}
	case c.ContentPending != "" && info["business_type"] != "" && info["product"] != "":
		pending := c.ContentPending
		c.ContentPending = ""
		reply = e.generateContent(ctx, pending, message, info)
	case e.shouldFinalize(c, intent, message):
		reply, saveResult = e.finalize(ctx, c, message, info)
	default:
		reply = e.converse(ctx, c, message)
	}

	if strings.Contains(reply, "?") {
		c.ConsecutiveQuestions++
	} else {
		c.ConsecutiveQuestions = 0
	}

	c.AppendHistory("assistant", reply)
	e.persistMessage(c, "assistant", reply)

	return &models.QueryResult{
		ConversationID: conversationID,
		UserID:         userID,
		Answer:         reply,
		Stage:          c.Stage,
		CompletionRate: e.tracker.CompletionRate(c.Stage, c.Slots),
		CollectedInfo:  c.CollectedInfo(),
		MissingInfo:    e.tracker.MissingRequired(c.Stage, c.Slots),
		CanProceed:     e.tracker.CompletionRate(c.Stage, c.Slots) >= AdvanceThreshold,
		Engagement:     c.Engagement,
		AutoSaved:      saveResult.Saved,
	}, nil
}

// GetStatus returns a snapshot of the conversation.
func (e *MarketingEngine) GetStatus(conversationID string) (*models.ConversationStatus, error) {
	c, ok := e.contexts.Get(conversationID)
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	c.Lock()
	defer c.Unlock()
	return &models.ConversationStatus{
		ConversationID:    c.ConversationID,
		UserID:            c.UserID,
		AgentType:         c.AgentType,
		Stage:             c.Stage,
		CompletionRate:    e.tracker.CompletionRate(c.Stage, c.Slots),
		OverallCompletion: e.tracker.OverallCompletionRate(c.Slots),
		CollectedInfo:     c.CollectedInfo(),
		MissingInfo:       e.tracker.MissingRequired(c.Stage, c.Slots),
		Engagement:        c.Engagement,
		AutoSaved:         c.AutoSaved,
	}, nil
}

// Reset discards the conversation state.
func (e *MarketingEngine) Reset(conversationID string) error {
	if _, ok := e.contexts.Get(conversationID); !ok {
		return models.ErrConversationNotFound
	}
	e.contexts.Delete(conversationID)
	return nil
}

// requestedContent reports whether this turn asks for a deliverable and
// which kind. Keyword detection picks the kind; the classifier's next_action
// catches content requests the keywords miss, defaulting to an Instagram
// post to match the default channel.
func (e *MarketingEngine) requestedContent(intent models.IntentClassification, message string) (ContentType, bool) {
	if ct, ok := DetectContentType(message); ok {
		return ct, true
	}
	if intent.NextAction == "generate_content" {
		return ContentInstagramPost, true
	}
	return "", false
}

// shouldFinalize reports whether this turn produces the full strategy: the
// classifier asking for it, an explicit keyword, or the collection being
// essentially done.
func (e *MarketingEngine) shouldFinalize(c *ConversationContext, intent models.IntentClassification, message string) bool {
	if intent.NextAction == "finalize_strategy" {
		return true
	}
	for _, kw := range finalizeKeywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return e.tracker.OverallCompletionRate(c.Slots) >= FinalizeThreshold
}

func (e *MarketingEngine) generateContent(ctx context.Context, ct ContentType, message string, info map[string]string) string {
	req := ContentRequest{
		Message:  message,
		Channel:  InferChannel(info),
		Keywords: ContentKeywords(info),
		Info:     info,
	}
	reply, err := e.content.Generate(ctx, ct, req)
	if err != nil {
		return "콘텐츠를 만드는 중 문제가 생겼어요. 잠시 후 다시 요청해주시겠어요?"
	}
	return reply
}

// finalize composes the full strategy and saves it as a project. A save
// failure only adds a notice; the strategy is still delivered.
func (e *MarketingEngine) finalize(ctx context.Context, c *ConversationContext, message string, info map[string]string) (string, models.ProjectSaveResult) {
	strategy := e.generateContent(ctx, ContentStrategy, message, info)

	document := buildStrategyDocument(info, strategy)
	saveResult := e.saver.MaybeSave(c, models.CategoryMarketingStrategy, document)

	c.Stage = models.StageCompleted
	return strategy + saveResult.Notice, saveResult
}

// converse produces the regular consulting reply, asking for at most two
// missing fields unless the user shows question fatigue.
func (e *MarketingEngine) converse(ctx context.Context, c *ConversationContext, message string) string {
	missing := e.tracker.SortedMissing(c, 2)
	askQuestions := c.ConsecutiveQuestions < maxConsecutiveQuestions &&
		c.NegativeSignals < maxNegativeSignals &&
		c.Engagement != EngagementLow

	if e.client != nil {
		if reply, err := e.converseLLM(ctx, c, message, missing, askQuestions); err == nil {
			return reply
		}
	}
	return fallbackReply(missing, askQuestions)
}

func (e *MarketingEngine) converseLLM(ctx context.Context, c *ConversationContext, message string, missing []string, askQuestions bool) (string, error) {
	msgs := []genai.ChatMessage{{Role: "system", Content: e.buildSystemPrompt(c, missing, askQuestions)}}
	for _, h := range c.History {
		role := "user"
		if h.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, genai.ChatMessage{Role: role, Content: h.Content})
	}
	reply, err := e.client.GenerateWithMessages(ctx, msgs)
	if err != nil {
		slog.Debug("MarketingEngine.converseLLM: generation failed, using fallback", "error", err)
		return "", err
	}
	return reply, nil
}

func (e *MarketingEngine) buildSystemPrompt(c *ConversationContext, missing []string, askQuestions bool) string {
	var sb strings.Builder
	sb.WriteString(marketingSystemPrompt)
	sb.WriteString("\n\n현재 상담 단계: " + string(c.Stage))
	if info := c.CollectedInfo(); len(info) > 0 {
		sb.WriteString("\n지금까지 파악한 정보:")
		for field, value := range info {
			sb.WriteString(fmt.Sprintf("\n- %s: %s", field, value))
		}
	}
	if askQuestions && len(missing) > 0 {
		sb.WriteString("\n답변 끝에 다음 정보를 자연스럽게 하나만 물어보세요: " + strings.Join(missing, ", "))
	} else {
		sb.WriteString("\n이번 답변에서는 질문하지 말고 조언에 집중하세요.")
	}
	return sb.String()
}

// fallbackReply is the fixed consulting reply used when no model is
// available.
func fallbackReply(missing []string, askQuestions bool) string {
	if askQuestions && len(missing) > 0 {
		var questions []string
		for _, field := range missing {
			if q, ok := clarifyQuestions[field]; ok {
				questions = append(questions, q)
			}
		}
		if len(questions) > 0 {
			return "말씀해주셔서 감사해요! 더 정확한 전략을 위해 여쭤볼게요. " + strings.Join(questions, " ")
		}
	}
	return "말씀해주신 내용을 바탕으로 전략을 다듬고 있어요. 준비되시면 \"전략\"이라고 말씀해주세요. 종합 전략을 정리해드릴게요."
}

func (e *MarketingEngine) updateEngagement(c *ConversationContext, message string) {
	negative := false
	for _, kw := range negativeReplyKeywords {
		if strings.Contains(message, kw) {
			negative = true
			break
		}
	}
	if negative {
		c.NegativeSignals++
	}
	switch {
	case c.NegativeSignals >= maxNegativeSignals:
		c.Engagement = EngagementLow
	case len([]rune(message)) > 30:
		c.Engagement = EngagementHigh
	default:
		c.Engagement = EngagementMid
	}
}

// persistMessage stores a turn when a store is configured. Failures are
// logged and never break the conversation.
func (e *MarketingEngine) persistMessage(c *ConversationContext, role, content string) {
	if e.store == nil {
		return
	}
	msg := models.Message{
		ID:             ulid.Make().String(),
		ConversationID: c.ConversationID,
		Role:           role,
		AgentType:      c.AgentType,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := e.store.AddMessage(msg); err != nil {
		slog.Error("MarketingEngine.persistMessage: failed to store message", "error", err, "conversationID", c.ConversationID)
	}
}

// buildStrategyDocument renders the saved markdown document.
func buildStrategyDocument(info map[string]string, strategy string) string {
	var sb strings.Builder
	sb.WriteString("# 마케팅 전략\n\n")
	sb.WriteString("## 수집된 정보\n\n")
	for _, field := range []string{"business_type", "product", "main_goal", "target_audience", "budget", "channels"} {
		if v := info[field]; v != "" {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", field, v))
		}
	}
	sb.WriteString("\n## 전략\n\n")
	sb.WriteString(strategy)
	sb.WriteString("\n")
	return sb.String()
}
