package moderation

import "regexp"

// 静态规则表。纯词表+正则，无外部调用；误判是这种方案的固有局限。

// sensitiveWords 覆盖违禁品、武器、诈骗、色情、赌博、器官交易、人口贩卖。
var sensitiveWords = []string{
	// 违禁品
	"毒品", "drug", "cocaine", "heroin", "大麻", "marijuana",
	// 武器
	"枪", "gun", "刀", "knife", "武器", "weapon",
	// 诈骗
	"诈骗", "fraud", "scam", "骗子", "诈骗犯",
	// 色情
	"裸照", "色情", "porn", "sex",
	// 赌博
	"赌博", "赌钱", "gambling", "casino",
	// 器官交易
	"器官", "organ",
	// 人口贩卖
	"贩卖", "trafficking", "slavery",
}

// dangerousTransactions 覆盖私下交易、预付费、饥饿营销和清关类骗局话术。
var dangerousTransactions = []string{
	"私下交易", "微信转账", "支付宝转账", "银行转账",
	"先付款", "交保证金", "VIP会员费", "解锁费用",
	"免费试用", "超值优惠", "限量供应", "限时抢购",
	"海外代购", "清关费", "关税",
}

// inducementPatterns 匹配引流行为：点链接、加外部联系方式、转私聊。
var inducementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)点击链接`),
	regexp.MustCompile(`(?i)添加微信`),
	regexp.MustCompile(`(?i)加我微信`),
	regexp.MustCompile(`(?i)私聊我`),
	regexp.MustCompile(`(?i)看主页`),
}

// moneyPatterns 匹配金额表述；两条以上命中才视为频繁涉钱。
var moneyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)转[0-9]+元`),
	regexp.MustCompile(`(?i)转[0-9]+块`),
	regexp.MustCompile(`(?i)pay.*[0-9]`),
	regexp.MustCompile(`(?i)人民币`),
}

// safetySuggestions 是风险不为low时附带的固定安全提示。
var safetySuggestions = []string{
	"请勿向陌生人转账",
	"建议使用平台担保交易",
	"如遇诈骗请立即举报",
	"如需帮助请联系客服",
}

const transactionSuggestion = "请勿进行私下交易，建议使用平台担保交易"
