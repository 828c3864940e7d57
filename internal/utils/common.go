package utils

import (
	"strings"
	"unicode/utf8"
)

// MaskSecret 隐藏密钥，仅保留首尾少量字符用于日志排查
//   - len <= 5: fully masked
//   - len <= 20: first and last character visible
//   - otherwise: first 3 and last 1 visible
func MaskSecret(s string) string {
	n := len(s)
	switch {
	case n == 0:
		return ""
	case n <= 5:
		return strings.Repeat("*", n)
	case n <= 20:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	default:
		return s[:3] + strings.Repeat("*", n-4) + s[n-1:]
	}
}

// Truncate 截断文本到指定字符数，用于日志输出
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// RemoveControlCharacters 移除控制字符
func RemoveControlCharacters(text string) string {
	// 保留换行符和制表符
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, text)
}
