package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewJobID 生成任务ID
func NewJobID() string {
	return uuid.NewString()
}

// NewPurchaserIdentifier 生成购买方标识
// 支付协议要求 14-26 位十六进制字符串，这里固定生成 14 位
func NewPurchaserIdentifier() string {
	buf := make([]byte, 7)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败时退回 uuid 派生
		return uuid.NewString()[:14]
	}
	return hex.EncodeToString(buf)
}
