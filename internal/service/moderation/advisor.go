package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	moderationModel "github.com/kandedongma/foreigner-app/backend/internal/model/moderation"
)

// AdvisorConfig 控制大模型复核的行为。
type AdvisorConfig struct {
	Enabled bool
}

// Review 是大模型复核的结论。静态规则结果始终是基线，
// 复核只在其之上补充建议，从不降低已判定的风险等级。
type Review struct {
	Result     moderationModel.Result `json:"result"`
	Advice     []string               `json:"advice,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Confidence float32                `json:"confidence"`
}

// Advisor 用大模型对规则判定做二次复核，不可用或失败时原样返回规则结果。
// 规则判定本身（CheckMessage）从不经过这里，保持确定性。
type Advisor struct {
	enabled  bool
	reviewer compose.Runnable[map[string]any, *schema.Message]
}

// NewAdvisor 创建复核服务。chatModel 为空或未启用时返回直通实现。
func NewAdvisor(ctx context.Context, chatModel model.ChatModel, cfg AdvisorConfig) (*Advisor, error) {
	a := &Advisor{enabled: cfg.Enabled && chatModel != nil}
	if !a.enabled {
		return a, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(advisorSystemPrompt),
		schema.UserMessage(advisorUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile moderation reviewer chain: %w", err)
	}

	a.reviewer = runnable
	return a, nil
}

// Enabled 返回复核是否可用。
func (a *Advisor) Enabled() bool {
	return a != nil && a.enabled && a.reviewer != nil
}

// Review 复核一条消息的规则判定。任何失败都回退为规则结果本身。
func (a *Advisor) Review(ctx context.Context, message string, ruleResult moderationModel.Result) Review {
	fallback := Review{Result: ruleResult, Confidence: 1}
	if !a.Enabled() {
		return fallback
	}

	input := map[string]any{
		"message":    strings.TrimSpace(message),
		"risk_level": string(ruleResult.RiskLevel),
		"flag_count": len(ruleResult.Flags),
	}

	msg, err := a.reviewer.Invoke(ctx, input)
	if err != nil {
		log.Printf("[moderation] reviewer invoke failed, use rule result: %v", err)
		return fallback
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return fallback
	}

	payload, err := parseReviewerOutput(msg.Content)
	if err != nil {
		log.Printf("[moderation] reviewer output parse failed, use rule result: %v", err)
		return fallback
	}

	review := Review{
		Result:     ruleResult,
		Advice:     payload.Advice,
		Reason:     strings.TrimSpace(payload.Reason),
		Confidence: clampConfidence(payload.Confidence),
	}

	// 复核只允许抬高风险，不允许降低。
	if level, ok := parseRiskLevel(payload.Risk); ok && level.AtLeast(ruleResult.RiskLevel) {
		review.Result.RiskLevel = level
		if level.AtLeast(moderationModel.RiskCritical) {
			review.Result.IsSafe = false
		}
	}

	return review
}

type reviewerPayload struct {
	Risk       string   `json:"risk"`
	Advice     []string `json:"advice"`
	Reason     string   `json:"reason"`
	Confidence float32  `json:"confidence"`
}

// parseReviewerOutput 解析大模型返回的 JSON。
func parseReviewerOutput(content string) (*reviewerPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &reviewerPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func parseRiskLevel(raw string) (moderationModel.RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return moderationModel.RiskLow, true
	case "medium":
		return moderationModel.RiskMedium, true
	case "high":
		return moderationModel.RiskHigh, true
	case "critical":
		return moderationModel.RiskCritical, true
	default:
		return "", false
	}
}

func clampConfidence(val float32) float32 {
	if val <= 0 {
		return 0.5
	}
	if val > 1 {
		return 1
	}
	return val
}

const advisorSystemPrompt = "你是一名聊天平台的内容安全复核员。平台已经用静态规则对消息做了初判，你需要结合语义判断是否存在规则未覆盖的诈骗、引流或其他危险行为。\n输出要求：只返回一个 JSON 对象，字段如下：risk (必须是 low/medium/high/critical 之一)、advice (给用户的中文安全建议数组，可为空)、confidence (0~1 之间的小数)、reason (简要中文理由)。不得输出多余文本。"

const advisorUserPrompt = "消息内容：{message}\n规则初判风险等级：{risk_level}\n规则命中数量：{flag_count}"
