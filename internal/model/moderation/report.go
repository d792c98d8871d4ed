package moderation

import "time"

// ReportReason 枚举举报原因。
type ReportReason string

const (
	ReasonHarassment    ReportReason = "harassment"
	ReasonScam          ReportReason = "scam"
	ReasonSpam          ReportReason = "spam"
	ReasonInappropriate ReportReason = "inappropriate_content"
	ReasonDangerous     ReportReason = "dangerous_behavior"
	ReasonMinorSafety   ReportReason = "minor_safety"
	ReasonOther         ReportReason = "other"
)

// ValidReason reports whether r is one of the accepted report reasons.
func ValidReason(r ReportReason) bool {
	switch r {
	case ReasonHarassment, ReasonScam, ReasonSpam, ReasonInappropriate,
		ReasonDangerous, ReasonMinorSafety, ReasonOther:
		return true
	}
	return false
}

// Report 是一条用户举报记录。
type Report struct {
	ID             string       `json:"id"`
	ReportedUserID string       `json:"reportedUserId"`
	ReporterID     string       `json:"reporterId"`
	Reason         ReportReason `json:"reason"`
	Description    string       `json:"description"`
	Status         string       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// SecurityLevel 描述当前生效的安全策略。
type SecurityLevel struct {
	MinimumAge                     int  `json:"minimumAge"`
	MaxChatDurationMinutes         int  `json:"maxChatDuration"`
	RequirePhoneVerification       bool `json:"requirePhoneVerification"`
	AllowSocialLogin               bool `json:"allowSocialLogin"`
	AutoDeleteEnabled              bool `json:"autoDeleteEnabled"`
	ContentModeration              bool `json:"contentModeration"`
	SuspiciousTransactionDetection bool `json:"suspiciousTransactionDetection"`
}

// SafetyFeatures 列出安全会话启用的监控项。
type SafetyFeatures struct {
	FinancialContentMonitor bool `json:"financialContentMonitor"`
	ContactExchangeMonitor  bool `json:"contactExchangeMonitor"`
	MeetingRequestMonitor   bool `json:"meetingRequestMonitor"`
	SensitiveWordFilter     bool `json:"sensitiveWordFilter"`
}

// SafeSessionPreferences 是用户对安全会话的偏好设置。
type SafeSessionPreferences struct {
	AllowFinancialDiscussion bool `json:"allowFinancialDiscussion"`
	AllowContactExchange     bool `json:"allowContactExchange"`
	AllowMeetingRequests     bool `json:"allowMeetingRequests"`
}

// SafeSessionConfig 描述一次受监控的安全会话。
type SafeSessionConfig struct {
	UserID         string                 `json:"userId"`
	PartnerID      string                 `json:"partnerId"`
	StartTime      time.Time              `json:"startTime"`
	MaxDuration    time.Duration          `json:"maxDuration"`
	SafetyFeatures SafetyFeatures         `json:"safetyFeatures"`
	Preferences    SafeSessionPreferences `json:"preferences"`
}
