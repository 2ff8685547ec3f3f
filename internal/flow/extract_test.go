package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/modubiz/ConsultFlow/internal/models"
)

func TestExtractByRules(t *testing.T) {
	cases := []struct {
		name    string
		message string
		field   string
		value   string
	}{
		{"business type cafe", "카페를 운영해요", "business_type", "카페"},
		{"business type restaurant", "작은 음식점을 하고 있어요", "business_type", "식당"},
		{"product from sale marker", "라떼랑 디저트 팔아요", "product", "라떼랑 디저트"},
		{"channel", "인스타그램 위주로 홍보하고 싶어요", "channels", "인스타그램"},
		{"audience age", "주로 20대 여성 손님이 많아요", "target_audience", "20대 여성"},
		{"audience office workers", "직장인 손님이 대부분이에요", "target_audience", "직장인"},
		{"budget", "한 달에 50만원 정도 쓸 수 있어요", "budget", "50만원"},
		{"goal", "매출을 올리고 싶어요", "main_goal", "매출 증대"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractByRules(tc.message)
			if got[tc.field] != tc.value {
				t.Errorf("extractByRules(%q)[%s] = %q, want %q", tc.message, tc.field, got[tc.field], tc.value)
			}
		})
	}
}

func TestExtractorUsesLLMThenRules(t *testing.T) {
	client := &MockGenAIClient{Responses: []string{
		`{"business_type": "베이커리", "product": "", "main_goal": "", "target_audience": "", "budget": "", "channels": ""}`,
	}}
	x := NewSlotExtractor(client)
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	stored := x.Extract(context.Background(), c, "빵집에서 크루아상 팔아요")
	if len(stored) == 0 {
		t.Fatal("expected stored fields")
	}
	if got := c.SlotValue("business_type"); got != "베이커리" {
		t.Errorf("expected model value for business_type, got %q", got)
	}
	// The rules fill what the model left blank.
	if got := c.SlotValue("product"); got != "빵집에서 크루아상" {
		t.Errorf("expected rule fallback for product, got %q", got)
	}
	if src := c.Slots["business_type"].Source; src != models.SlotSourceLLM {
		t.Errorf("expected LLM source, got %q", src)
	}
}

func TestExtractorFallsBackOnModelFailure(t *testing.T) {
	x := NewSlotExtractor(&MockGenAIClient{Err: errors.New("api down")})
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	x.Extract(context.Background(), c, "카페를 운영해요")
	if got := c.SlotValue("business_type"); got != "카페" {
		t.Errorf("expected rule extraction on model failure, got %q", got)
	}
	if src := c.Slots["business_type"].Source; src != models.SlotSourceRule {
		t.Errorf("expected rule source, got %q", src)
	}
}

func TestExtractorDiscardsMalformedModelOutput(t *testing.T) {
	x := NewSlotExtractor(&MockGenAIClient{Responses: []string{"업종은 카페인 것 같습니다"}})
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	x.Extract(context.Background(), c, "카페를 운영해요")
	// Malformed output is discarded, never repaired; the rules still apply.
	if got := c.SlotValue("business_type"); got != "카페" {
		t.Errorf("expected rule extraction after parse failure, got %q", got)
	}
}

func TestExtractorRejectsNullLikeModelValues(t *testing.T) {
	x := NewSlotExtractor(&MockGenAIClient{Responses: []string{
		`{"business_type": "없음", "product": "null", "main_goal": "N/A", "target_audience": "", "budget": "", "channels": ""}`,
	}})
	c := NewConversationContext("user-1", "conv-1", models.AgentMarketing)

	x.Extract(context.Background(), c, "안녕하세요")
	if len(c.Slots) != 0 {
		t.Errorf("expected no slots from null-like values, got %v", c.CollectedInfo())
	}
}
