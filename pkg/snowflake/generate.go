package snowflake

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// JourneyIDPrefix 行程 ID 前缀
const JourneyIDPrefix = "j_"

const maxPartID = 31 // 数据中心与机器号各 5 位

var (
	mu   sync.RWMutex
	node *snowflake.Node
)

// Init 创建全局节点，可重复调用，最后一次生效
func Init(machineID, dataCenterID int64) error {
	if machineID < 0 || machineID > maxPartID {
		return fmt.Errorf("snowflake machine id %d out of range [0,%d]", machineID, maxPartID)
	}
	if dataCenterID < 0 || dataCenterID > maxPartID {
		return fmt.Errorf("snowflake data center id %d out of range [0,%d]", dataCenterID, maxPartID)
	}

	n, err := snowflake.NewNode(dataCenterID<<5 | machineID)
	if err != nil {
		return fmt.Errorf("create snowflake node: %w", err)
	}

	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// NextJourneyID 生成行程 ID，形如 j_<snowflake>，永不复用
func NextJourneyID() (string, error) {
	mu.RLock()
	n := node
	mu.RUnlock()
	if n == nil {
		return "", fmt.Errorf("snowflake generator is not initialized")
	}
	return JourneyIDPrefix + n.Generate().String(), nil
}

// ParseJourneyID 还原行程 ID 中的 snowflake 值
func ParseJourneyID(id string) (snowflake.ID, error) {
	raw, ok := strings.CutPrefix(id, JourneyIDPrefix)
	if !ok {
		return 0, fmt.Errorf("journey id %q missing prefix", id)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("journey id %q: %w", id, err)
	}
	return snowflake.ID(v), nil
}
