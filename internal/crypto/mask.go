package crypto

import (
	"regexp"
	"strings"
)

// 脱敏工具：用于展示和日志，不能替代加密。

var (
	phoneNumberRe = regexp.MustCompile(`\d{11}`)
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	idFragmentRe  = regexp.MustCompile(`\b\d{6}\b`)
)

// MaskEmail 脱敏邮箱地址，保留首尾字符和域名。
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if len(local) <= 2 {
		return "**@" + domain
	}
	return string(local[0]) + strings.Repeat("*", len(local)-2) + string(local[len(local)-1]) + "@" + domain
}

// MaskPhone 脱敏手机号，保留前3位和后2位。
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}

// MaskUsername 脱敏用户名，仅保留首字符。
func MaskUsername(username string) string {
	runes := []rune(username)
	if len(runes) <= 2 {
		return "**"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// MaskChatMessage strips phone numbers, email addresses and six-digit id
// fragments from a message before it reaches any log line.
func MaskChatMessage(message string) string {
	masked := phoneNumberRe.ReplaceAllString(message, "***")
	masked = emailRe.ReplaceAllString(masked, "***@***.***")
	return idFragmentRe.ReplaceAllString(masked, "******")
}
