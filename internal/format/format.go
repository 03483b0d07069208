// Package format 提供告警与日志用的数字格式化
package format

import (
	"math"
	"strconv"
	"strings"
)

// Comma 四舍五入到整数并按千分位分组, 如 1234567.8 -> "1,234,568"
func Comma(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// SignedComma 与Comma相同但非负数带显式正号, 如 980.2 -> "+980"
func SignedComma(v float64) string {
	s := Comma(v)
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}
