package utils

import "strings"

const phonePrefix = "+601"

// IsValidPhone accepts Malaysian mobile numbers: "+601" followed by 8 or 9
// digits.
func IsValidPhone(phone string) bool {
	if !strings.HasPrefix(phone, phonePrefix) {
		return false
	}

	rest := phone[len(phonePrefix):]
	if len(rest) != 8 && len(rest) != 9 {
		return false
	}
	return isDigits(rest)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
