package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"SafeArrival/config"
)

// HashPhone 审计记录只保存联系人号码的哈希，盐 + ":" + phone
func HashPhone(phone string) string {
	key := config.Cfg.PhoneHashSalt
	sum := sha256.Sum256([]byte(key + ":" + phone))

	return hex.EncodeToString(sum[:])
}
