package utils

import (
	"regexp"
)

// E.164：+ 加国家码，总共不超过 15 位数字
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

func ValidatePhone(phone string) bool {
	return e164Pattern.MatchString(phone)
}
