package crypto

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ab@example.com", "**@example.com"},
		{"a@example.com", "**@example.com"},
		{"johndoe@example.com", "j*****e@example.com"},
		{"not-an-email", "not-an-email"},
	}
	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"13812345678", "138****78"},
		{"123456", "****"},
		{"", "****"},
	}
	for _, tc := range cases {
		if got := MaskPhone(tc.in); got != tc.want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskUsername(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ab", "**"},
		{"john", "j***"},
		{"张三丰", "张**"},
	}
	for _, tc := range cases {
		if got := MaskUsername(tc.in); got != tc.want {
			t.Fatalf("MaskUsername(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskChatMessage(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"我的手机号是13812345678", "我的手机号是***"},
		{"联系 me@example.com 吧", "联系 ***@***.*** 吧"},
		{"验证码 123456 别告诉别人", "验证码 ****** 别告诉别人"},
		{"纯文本不受影响", "纯文本不受影响"},
	}
	for _, tc := range cases {
		if got := MaskChatMessage(tc.in); got != tc.want {
			t.Fatalf("MaskChatMessage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
