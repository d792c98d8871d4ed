package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kandedongma/foreigner-app/backend/internal/crypto"
	"github.com/kandedongma/foreigner-app/backend/internal/model/moderation"
	"github.com/kandedongma/foreigner-app/backend/internal/storage"
)

const (
	reportsKey      = "moderationReports"
	reviewQueueKey  = "moderationReviewQueue"
	maxChatDuration = 30 * time.Minute
)

// Service 执行内容审核与举报处理。CheckMessage 是纯规则求值；
// 举报、封禁等动作都是显式调用，不会由检测自动触发。
type Service struct {
	store storage.Store
	now   func() time.Time
}

// NewService 创建审核服务。store 用于保存举报记录和审核队列。
func NewService(store storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CheckMessage 对单条消息做静态规则分类。结果只由消息文本决定；
// senderID 仅用于审计日志。
func (s *Service) CheckMessage(message, senderID string) moderation.Result {
	result := moderation.Result{
		IsSafe:      true,
		RiskLevel:   moderation.RiskLow,
		Flags:       []moderation.Flag{},
		Suggestions: []string{},
	}

	lower := strings.ToLower(message)

	// 1. 敏感词
	for _, word := range sensitiveWords {
		if strings.Contains(message, word) || strings.Contains(lower, strings.ToLower(word)) {
			result.IsSafe = false
			result.RiskLevel = moderation.RiskHigh
			result.Flags = append(result.Flags, moderation.Flag{
				Type:    moderation.FlagSensitiveWord,
				Word:    word,
				Message: "包含敏感内容",
			})
		}
	}

	// 2. 危险交易
	for _, keyword := range dangerousTransactions {
		if strings.Contains(message, keyword) {
			result.RiskLevel = moderation.RiskHigh
			result.Flags = append(result.Flags, moderation.Flag{
				Type:    moderation.FlagDangerousTransaction,
				Keyword: keyword,
				Message: "可能涉及危险交易",
			})
			result.Suggestions = append(result.Suggestions, transactionSuggestion)
		}
	}

	// 3. 诱导行为，只记flag不改等级
	for _, pattern := range inducementPatterns {
		if pattern.MatchString(message) {
			result.Flags = append(result.Flags, moderation.Flag{
				Type:    moderation.FlagInducement,
				Message: "可能存在诱导行为",
			})
		}
	}

	// 4. 频繁涉钱：两条以上不同模式命中才计flag
	moneyCount := 0
	for _, pattern := range moneyPatterns {
		if pattern.MatchString(message) {
			moneyCount++
		}
	}
	if moneyCount >= 2 {
		result.Flags = append(result.Flags, moderation.Flag{
			Type:    moderation.FlagFrequentMoney,
			Message: "频繁涉及金钱交易",
		})
	}

	// 5. 综合风险评估。单flag只在等级尚未被前面规则抬高时降为medium。
	switch {
	case len(result.Flags) >= 3:
		result.RiskLevel = moderation.RiskCritical
		result.IsSafe = false
	case len(result.Flags) >= 2:
		result.RiskLevel = moderation.RiskHigh
	case len(result.Flags) == 1 && !result.RiskLevel.AtLeast(moderation.RiskHigh):
		result.RiskLevel = moderation.RiskMedium
	}

	// 6. 安全建议
	if result.RiskLevel != moderation.RiskLow {
		result.Suggestions = append([]string{}, safetySuggestions...)
	}

	if len(result.Flags) > 0 {
		log.Printf("[moderation] sender=%s risk=%s flags=%d message=%q",
			senderID, result.RiskLevel, len(result.Flags), crypto.MaskChatMessage(message))
	}

	return result
}

// ReportUser 保存一条举报记录并将被举报人放入审核队列。
func (s *Service) ReportUser(ctx context.Context, reportedUserID, reporterID string, reason moderation.ReportReason, description string) (*moderation.Report, error) {
	if !moderation.ValidReason(reason) {
		return nil, fmt.Errorf("invalid report reason: %q", reason)
	}

	report := moderation.Report{
		ID:             "report_" + uuid.NewString(),
		ReportedUserID: reportedUserID,
		ReporterID:     reporterID,
		Reason:         reason,
		Description:    description,
		Status:         "pending",
		CreatedAt:      s.now().UTC(),
	}

	reports, err := s.loadReports(ctx)
	if err != nil {
		return nil, err
	}
	reports = append(reports, report)
	if err := s.saveJSON(ctx, reportsKey, reports); err != nil {
		return nil, err
	}

	if err := s.QueueForReview(ctx, reportedUserID); err != nil {
		log.Printf("[moderation] queue for review failed: %v", err)
	}

	return &report, nil
}

// Reports 返回全部举报记录，按提交顺序。
func (s *Service) Reports(ctx context.Context) ([]moderation.Report, error) {
	return s.loadReports(ctx)
}

// BanUser 记录封禁动作。会话清理由聊天服务负责，调用方自行编排。
func (s *Service) BanUser(ctx context.Context, userID, reason string, duration time.Duration) error {
	if duration <= 0 {
		log.Printf("[moderation] user banned permanently: user=%s reason=%s", userID, reason)
	} else {
		log.Printf("[moderation] user banned: user=%s reason=%s duration=%s", userID, reason, duration)
	}
	return nil
}

// QueueForReview 将用户追加到人工审核队列。
func (s *Service) QueueForReview(ctx context.Context, userID string) error {
	var queue []string
	raw, err := s.store.Get(ctx, reviewQueueKey)
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &queue); err != nil {
			log.Printf("[moderation] corrupt review queue, resetting: %v", err)
			queue = nil
		}
	} else if err != storage.ErrNotFound {
		return fmt.Errorf("load review queue: %w", err)
	}

	queue = append(queue, userID)
	return s.saveJSON(ctx, reviewQueueKey, queue)
}

// AgeCheck 是年龄验证的结果。
type AgeCheck struct {
	IsAdult bool `json:"isAdult"`
	Age     int  `json:"age,omitempty"`
}

// VerifyAge 占位实现：对接真实年龄验证服务前恒为成年。
func (s *Service) VerifyAge(_ context.Context, _ string) AgeCheck {
	return AgeCheck{IsAdult: true, Age: 25}
}

// SecurityLevel 返回当前生效的安全策略。
func (s *Service) SecurityLevel() moderation.SecurityLevel {
	return moderation.SecurityLevel{
		MinimumAge:                     18,
		MaxChatDurationMinutes:         int(maxChatDuration / time.Minute),
		RequirePhoneVerification:       false,
		AllowSocialLogin:               true,
		AutoDeleteEnabled:              true,
		ContentModeration:              true,
		SuspiciousTransactionDetection: true,
	}
}

// CreateSafeSession 生成一份全监控项开启的安全会话配置。
func (s *Service) CreateSafeSession(userID, partnerID string, prefs moderation.SafeSessionPreferences) moderation.SafeSessionConfig {
	return moderation.SafeSessionConfig{
		UserID:      userID,
		PartnerID:   partnerID,
		StartTime:   s.now().UTC(),
		MaxDuration: maxChatDuration,
		SafetyFeatures: moderation.SafetyFeatures{
			FinancialContentMonitor: true,
			ContactExchangeMonitor:  true,
			MeetingRequestMonitor:   true,
			SensitiveWordFilter:     true,
		},
		Preferences: prefs,
	}
}

func (s *Service) loadReports(ctx context.Context) ([]moderation.Report, error) {
	raw, err := s.store.Get(ctx, reportsKey)
	if err == storage.ErrNotFound {
		return []moderation.Report{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}

	var reports []moderation.Report
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		return nil, fmt.Errorf("parse reports: %w", err)
	}
	return reports, nil
}

func (s *Service) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
