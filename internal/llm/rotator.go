package llm

import (
	"fmt"
	"strings"
	"sync"
)

// KeyRotator 单提供商的 API key 轮换环。
// 游标推进必须是原子操作：并发调用不会拿到同一个未推进的位置，
// 环绕回绕后返回相同 key 是正常行为。
type KeyRotator struct {
	mu    sync.Mutex
	keys  []string
	index int
}

// NewKeyRotator 创建轮换器，空白 key 会被过滤掉
func NewKeyRotator(keys []string) (*KeyRotator, error) {
	valid := make([]string, 0, len(keys))
	for _, k := range keys {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			valid = append(valid, trimmed)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid API keys provided")
	}
	return &KeyRotator{keys: valid}, nil
}

// Next 返回当前 key 及其在环中的位置，并推进游标
func (r *KeyRotator) Next() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.keys[r.index]
	idx := r.index
	r.index = (r.index + 1) % len(r.keys)
	return key, idx
}

// Size 环中的 key 数量
func (r *KeyRotator) Size() int {
	return len(r.keys)
}
