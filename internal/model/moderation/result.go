package moderation

// RiskLevel 表示消息的风险等级，按严重程度排序。
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether l is the same as or more severe than other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return riskOrder[l] >= riskOrder[other]
}

// Flag type values produced by the rule pipeline.
const (
	FlagSensitiveWord        = "sensitive_word"
	FlagDangerousTransaction = "dangerous_transaction"
	FlagInducement           = "inducement"
	FlagFrequentMoney        = "frequent_money"
)

// Flag 记录单条规则命中的原因。
type Flag struct {
	Type    string `json:"type"`
	Word    string `json:"word,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Message string `json:"message"`
}

// Result 是内容审核的结论，仅由消息文本决定，不落盘。
type Result struct {
	IsSafe      bool      `json:"isSafe"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Flags       []Flag    `json:"flags"`
	Suggestions []string  `json:"suggestions"`
}
