package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/models"
)

const extractSystemPrompt = `당신은 마케팅 상담 대화에서 정보를 추출하는 도우미입니다.
사용자 메시지에서 다음 필드를 추출해 JSON으로만 응답하세요:
{"business_type": "", "product": "", "main_goal": "", "target_audience": "", "budget": "", "channels": ""}
메시지에 없는 필드는 빈 문자열로 두세요. JSON 외의 텍스트는 출력하지 마세요.`

// extractedSlots is the strict shape expected from the extraction model.
type extractedSlots struct {
	BusinessType   string `json:"business_type"`
	Product        string `json:"product"`
	MainGoal       string `json:"main_goal"`
	TargetAudience string `json:"target_audience"`
	Budget         string `json:"budget"`
	Channels       string `json:"channels"`
}

func (e extractedSlots) fields() map[string]string {
	return map[string]string{
		"business_type":   e.BusinessType,
		"product":         e.Product,
		"main_goal":       e.MainGoal,
		"target_audience": e.TargetAudience,
		"budget":          e.Budget,
		"channels":        e.Channels,
	}
}

// SlotExtractor pulls consultation fields out of user messages. The model
// path parses strict JSON; any failure falls back to keyword rules so a
// turn never loses extraction entirely.
type SlotExtractor struct {
	client genai.ClientInterface
}

// NewSlotExtractor creates an extractor. A nil client means rules only.
func NewSlotExtractor(client genai.ClientInterface) *SlotExtractor {
	return &SlotExtractor{client: client}
}

// Extract applies extraction to the message and upserts accepted values
// into the context. It returns the fields that were stored this turn.
func (x *SlotExtractor) Extract(ctx context.Context, c *ConversationContext, message string) []string {
	var stored []string
	if x.client != nil {
		if fields, ok := x.extractLLM(ctx, message); ok {
			for field, value := range fields {
				if c.UpsertSlot(field, value, models.SlotSourceLLM, 0.8) {
					stored = append(stored, field)
				}
			}
		}
	}
	for field, value := range extractByRules(message) {
		// Rules only fill gaps the model left.
		if _, ok := c.Slots[field]; ok {
			continue
		}
		if c.UpsertSlot(field, value, models.SlotSourceRule, 0.5) {
			stored = append(stored, field)
		}
	}
	if len(stored) > 0 {
		slog.Debug("SlotExtractor.Extract: slots stored", "conversationID", c.ConversationID, "fields", stored)
	}
	return stored
}

// extractLLM asks the model for slot values and parses the reply strictly.
// Malformed output is discarded, never repaired.
func (x *SlotExtractor) extractLLM(ctx context.Context, message string) (map[string]string, bool) {
	raw, err := x.client.Generate(ctx, extractSystemPrompt, message)
	if err != nil {
		slog.Debug("SlotExtractor.extractLLM: generation failed, falling back to rules", "error", err)
		return nil, false
	}
	var parsed extractedSlots
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		slog.Debug("SlotExtractor.extractLLM: strict parse failed, falling back to rules", "error", err)
		return nil, false
	}
	out := make(map[string]string)
	for field, value := range parsed.fields() {
		if !models.IsNullLike(value) {
			out[field] = strings.TrimSpace(value)
		}
	}
	return out, true
}

// businessTypeKeywords maps message keywords to a business type value.
var businessTypeKeywords = []struct {
	keyword string
	value   string
}{
	{"카페", "카페"},
	{"커피숍", "카페"},
	{"식당", "식당"},
	{"음식점", "식당"},
	{"레스토랑", "식당"},
	{"쇼핑몰", "온라인 쇼핑몰"},
	{"온라인 스토어", "온라인 쇼핑몰"},
	{"미용실", "미용실"},
	{"뷰티샵", "뷰티샵"},
	{"학원", "학원"},
	{"헬스장", "헬스장"},
	{"필라테스", "필라테스"},
	{"병원", "병원"},
	{"공방", "공방"},
	{"베이커리", "베이커리"},
	{"빵집", "베이커리"},
}

var channelKeywords = []string{"인스타그램", "인스타", "블로그", "유튜브", "페이스북", "틱톡", "네이버", "스마트스토어"}

var audiencePattern = regexp.MustCompile(`([1-6]0대)`)

var budgetPattern = regexp.MustCompile(`(\d+(?:,\d{3})*)\s*(만\s*원|만원|원|억)`)

var goalKeywords = []struct {
	keyword string
	value   string
}{
	{"매출", "매출 증대"},
	{"신규 고객", "신규 고객 확보"},
	{"단골", "단골 고객 확보"},
	{"홍보", "브랜드 홍보"},
	{"브랜딩", "브랜딩 강화"},
	{"인지도", "인지도 상승"},
	{"재방문", "재방문율 향상"},
}

var productMarkers = []string{"팔아요", "판매해요", "판매하고", "팔고 있어요", "팔고있어요"}

// extractByRules is the deterministic keyword fallback used when the model
// is unavailable or returns unusable output.
func extractByRules(message string) map[string]string {
	out := make(map[string]string)

	for _, bt := range businessTypeKeywords {
		if strings.Contains(message, bt.keyword) {
			out["business_type"] = bt.value
			break
		}
	}

	for _, marker := range productMarkers {
		if idx := strings.Index(message, marker); idx > 0 {
			product := strings.TrimSpace(message[:idx])
			product = strings.TrimRight(product, "을를이가는은 ")
			if product != "" {
				out["product"] = product
			}
			break
		}
	}

	var channels []string
	for _, ch := range channelKeywords {
		if strings.Contains(message, ch) {
			if ch == "인스타" {
				ch = "인스타그램"
			}
			channels = append(channels, ch)
		}
	}
	if len(channels) > 0 {
		out["channels"] = strings.Join(dedupeStrings(channels), ", ")
	}

	if m := audiencePattern.FindString(message); m != "" {
		audience := m
		if strings.Contains(message, "여성") {
			audience += " 여성"
		} else if strings.Contains(message, "남성") {
			audience += " 남성"
		}
		out["target_audience"] = audience
	} else if strings.Contains(message, "직장인") {
		out["target_audience"] = "직장인"
	} else if strings.Contains(message, "학생") {
		out["target_audience"] = "학생"
	}

	if m := budgetPattern.FindString(message); m != "" {
		out["budget"] = strings.ReplaceAll(m, " ", "")
	}

	for _, g := range goalKeywords {
		if strings.Contains(message, g.keyword) {
			out["main_goal"] = g.value
			break
		}
	}

	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
