package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modubiz/ConsultFlow/internal/genai"
)

// ContentType identifies a kind of marketing deliverable.
type ContentType string

const (
	ContentInstagramPost   ContentType = "instagram_post"
	ContentBlogPost        ContentType = "blog_post"
	ContentStrategy        ContentType = "strategy"
	ContentCampaign        ContentType = "campaign"
	ContentTrendAnalysis   ContentType = "trend_analysis"
	ContentHashtagAnalysis ContentType = "hashtag_analysis"
)

// DefaultKeywords seed content generation when no keywords were collected.
var DefaultKeywords = []string{"마케팅", "비즈니스", "브랜드", "고객", "성장"}

// ContentRequest carries everything a generator needs for one deliverable.
type ContentRequest struct {
	Message  string
	Channel  string
	Keywords []string
	Info     map[string]string
}

// ContentGenerator produces one kind of marketing deliverable.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req ContentRequest) (string, error)
}

// ContentRegistry holds the generator for each deliverable kind. Each engine
// owns its registry, so generators bound to different clients never mix.
type ContentRegistry struct {
	generators map[ContentType]ContentGenerator
}

// Register associates a ContentType with a generator implementation.
func (r *ContentRegistry) Register(ct ContentType, gen ContentGenerator) {
	r.generators[ct] = gen
}

// Get retrieves the generator for a content type.
func (r *ContentRegistry) Get(ct ContentType) (ContentGenerator, bool) {
	gen, ok := r.generators[ct]
	return gen, ok
}

// Generate finds and runs the generator for the content type.
func (r *ContentRegistry) Generate(ctx context.Context, ct ContentType, req ContentRequest) (string, error) {
	slog.Debug("ContentRegistry.Generate invoked", "type", ct, "channel", req.Channel)
	if gen, ok := r.Get(ct); ok {
		result, err := gen.GenerateContent(ctx, req)
		if err != nil {
			slog.Error("Content generator error", "type", ct, "error", err)
		}
		return result, err
	}
	slog.Error("No generator registered for content type", "type", ct)
	return "", fmt.Errorf("no generator registered for content type %s", ct)
}

// contentTypeKeywords maps request keywords to content types. First match wins.
var contentTypeKeywords = []struct {
	keyword string
	ct      ContentType
}{
	{"해시태그", ContentHashtagAnalysis},
	{"트렌드", ContentTrendAnalysis},
	{"인스타", ContentInstagramPost},
	{"피드", ContentInstagramPost},
	{"포스팅", ContentInstagramPost},
	{"블로그", ContentBlogPost},
	{"캠페인", ContentCampaign},
	{"이벤트", ContentCampaign},
}

// DetectContentType reports whether the message asks for a specific
// deliverable, and which one.
func DetectContentType(message string) (ContentType, bool) {
	for _, entry := range contentTypeKeywords {
		if strings.Contains(message, entry.keyword) {
			return entry.ct, true
		}
	}
	return "", false
}

// InferChannel picks the marketing channel for content generation from the
// collected channels slot, defaulting to Instagram.
func InferChannel(info map[string]string) string {
	channels := info["channels"]
	if channels == "" {
		return "인스타그램"
	}
	if idx := strings.Index(channels, ","); idx > 0 {
		return strings.TrimSpace(channels[:idx])
	}
	return strings.TrimSpace(channels)
}

// ContentKeywords derives generation keywords from collected info, padding
// with defaults when the collection is thin.
func ContentKeywords(info map[string]string) []string {
	var kws []string
	for _, field := range []string{"business_type", "product", "main_goal"} {
		if v := info[field]; v != "" {
			kws = append(kws, v)
		}
	}
	for _, d := range DefaultKeywords {
		if len(kws) >= 5 {
			break
		}
		kws = append(kws, d)
	}
	return kws
}

// llmContentGenerator produces a deliverable via the model, with a fixed
// fallback body when the model is unavailable or fails.
type llmContentGenerator struct {
	client       genai.ClientInterface
	systemPrompt string
	fallback     string
}

func (g *llmContentGenerator) GenerateContent(ctx context.Context, req ContentRequest) (string, error) {
	if g.client == nil {
		return g.fallback, nil
	}
	var sb strings.Builder
	sb.WriteString("채널: " + req.Channel + "\n")
	sb.WriteString("키워드: " + strings.Join(req.Keywords, ", ") + "\n")
	for field, value := range req.Info {
		sb.WriteString(field + ": " + value + "\n")
	}
	sb.WriteString("요청: " + req.Message)
	result, err := g.client.Generate(ctx, g.systemPrompt, sb.String())
	if err != nil {
		slog.Debug("llmContentGenerator.GenerateContent: falling back", "error", err)
		return g.fallback, nil
	}
	return result, nil
}

// NewContentRegistry builds a registry with every deliverable generator
// bound to the given client.
func NewContentRegistry(client genai.ClientInterface) *ContentRegistry {
	r := &ContentRegistry{generators: make(map[ContentType]ContentGenerator)}
	r.Register(ContentInstagramPost, &llmContentGenerator{
		client:       client,
		systemPrompt: "당신은 인스타그램 마케팅 전문가입니다. 수집된 정보와 키워드로 매력적인 인스타그램 게시물을 작성하세요. 해시태그를 포함하세요.",
		fallback:     "📸 인스타그램 게시물 초안을 준비했어요. 사진과 함께 브랜드 이야기를 짧고 감성적으로 전하고, 핵심 해시태그 5개를 붙여보세요.",
	})
	r.Register(ContentBlogPost, &llmContentGenerator{
		client:       client,
		systemPrompt: "당신은 블로그 콘텐츠 전문가입니다. 수집된 정보로 검색 노출에 유리한 블로그 글 초안을 작성하세요.",
		fallback:     "📝 블로그 초안: 고객이 검색할 키워드를 제목에 넣고, 매장 이야기와 대표 메뉴 소개, 방문 팁 순서로 구성해보세요.",
	})
	r.Register(ContentStrategy, &llmContentGenerator{
		client:       client,
		systemPrompt: "당신은 마케팅 전략 컨설턴트입니다. 수집된 정보를 바탕으로 목표, 타겟, 채널, 예산 배분, 실행 일정이 담긴 종합 마케팅 전략을 작성하세요.",
		fallback:     "📋 종합 전략 초안: 1) 핵심 목표 정리 2) 타겟 고객 정의 3) 주력 채널 선정 4) 월 예산 배분 5) 4주 실행 플랜 순으로 정리해드릴게요.",
	})
	r.Register(ContentCampaign, &llmContentGenerator{
		client:       client,
		systemPrompt: "당신은 마케팅 캠페인 기획자입니다. 수집된 정보로 참여를 이끌어낼 캠페인 또는 이벤트 기획안을 작성하세요.",
		fallback:     "🎉 캠페인 아이디어: 신메뉴 출시 기념 팔로우+리그램 이벤트로 참여를 모으고, 당첨자에게 무료 쿠폰을 제공해보세요.",
	})
	r.Register(ContentTrendAnalysis, &llmContentGenerator{
		client:       client,
		systemPrompt: "당신은 마케팅 트렌드 분석가입니다. 키워드와 업종을 바탕으로 최근 트렌드를 분석하고 적용 아이디어를 제안하세요.",
		fallback:     "📈 트렌드 분석: 최근에는 짧은 영상 콘텐츠와 로컬 커뮤니티 마케팅의 반응이 좋아요. 업종에 맞춰 숏폼 콘텐츠부터 시작해보세요.",
	})
	r.Register(ContentHashtagAnalysis, &llmContentGenerator{
		client:       client,
		systemPrompt: "당신은 해시태그 분석 전문가입니다. 키워드와 업종에 맞는 해시태그 조합을 도달 범위별로 추천하세요.",
		fallback:     "#️⃣ 해시태그 추천: 대형 태그 2개 + 중형 태그 5개 + 지역/니치 태그 5개 조합이 기본이에요. 업종명과 지역명을 섞어 사용해보세요.",
	})
	return r
}
