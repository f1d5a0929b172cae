package uuid

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	guuid "github.com/google/uuid"
)

// tradeNamespace 交易 ID 的 UUIDv5 命名空间
var tradeNamespace = guuid.NewSHA1(guuid.NameSpaceOID, []byte("backflow.trade"))

// SnowNode 雪花 ID 生成节点，用于运行 ID 等不要求可复现的标识
type SnowNode struct {
	node *snowflake.Node
}

func NewNode(id int64) *SnowNode {
	node, err := snowflake.NewNode(id)
	if err != nil {
		panic(err)
	}
	return &SnowNode{node: node}
}

func (s *SnowNode) GenSnowStr() string {
	return s.node.Generate().String()
}

// GenUUID16 16 位随机串，用作请求 ID
func GenUUID16() string {
	return strings.ReplaceAll(guuid.NewString(), "-", "")[:16]
}

// TradeID 由标的、入场日和信号类型确定的 UUIDv5，同样的输入总是得到同样的 ID
func TradeID(symbol string, entryDate time.Time, signalType string) string {
	name := symbol + "|" + entryDate.Format(time.DateOnly) + "|" + signalType
	return guuid.NewSHA1(tradeNamespace, []byte(name)).String()
}
