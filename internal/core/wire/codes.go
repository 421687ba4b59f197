package wire

import "fmt"

// 基础协议消息码
const (
	HelloMsg      uint64 = 0x00
	DisconnectMsg uint64 = 0x01
	PingMsg       uint64 = 0x02
	PongMsg       uint64 = 0x03
)

// baseProtocolLength 基础协议保留的消息码数量
const baseProtocolLength uint64 = 0x10

// ProtocolVersion 基础协议版本
const ProtocolVersion uint64 = 5

// 能力名称
const (
	ProtocolEth  = "eth"
	ProtocolSnap = "snap"
)

// eth 消息码（已加上区间偏移）
const (
	StatusMsg          = ethOffset + 0x00
	NewBlockHashesMsg  = ethOffset + 0x01
	TransactionsMsg    = ethOffset + 0x02
	GetBlockHeadersMsg = ethOffset + 0x03
	BlockHeadersMsg    = ethOffset + 0x04
	GetBlockBodiesMsg  = ethOffset + 0x05
	BlockBodiesMsg     = ethOffset + 0x06
	NewBlockMsg        = ethOffset + 0x07
	GetReceiptsMsg     = ethOffset + 0x0f
	ReceiptsMsg        = ethOffset + 0x10
)

const (
	ethOffset  = baseProtocolLength
	ethLength  = 17
	snapOffset = ethOffset + ethLength
	snapLength = 8
)

type codeRange struct {
	name   string
	offset uint64
	length uint64
}

var codeRanges = []codeRange{
	{ProtocolEth, ethOffset, ethLength},
	{ProtocolSnap, snapOffset, snapLength},
}

// IsBaseCode 判断是否为基础协议消息码
func IsBaseCode(code uint64) bool {
	return code < baseProtocolLength
}

// ProtocolForCode 返回消息码所属的能力名称
func ProtocolForCode(code uint64) (string, bool) {
	for _, r := range codeRanges {
		if code >= r.offset && code < r.offset+r.length {
			return r.name, true
		}
	}
	return "", false
}

var responseCodes = map[uint64]uint64{
	GetBlockHeadersMsg: BlockHeadersMsg,
	GetBlockBodiesMsg:  BlockBodiesMsg,
	GetReceiptsMsg:     ReceiptsMsg,
}

// ResponseCode 返回请求消息码对应的应答消息码
func ResponseCode(requestCode uint64) (uint64, bool) {
	code, ok := responseCodes[requestCode]
	return code, ok
}

var codeNames = map[uint64]string{
	HelloMsg:           "Hello",
	DisconnectMsg:      "Disconnect",
	PingMsg:            "Ping",
	PongMsg:            "Pong",
	StatusMsg:          "Status",
	NewBlockHashesMsg:  "NewBlockHashes",
	TransactionsMsg:    "Transactions",
	GetBlockHeadersMsg: "GetBlockHeaders",
	BlockHeadersMsg:    "BlockHeaders",
	GetBlockBodiesMsg:  "GetBlockBodies",
	BlockBodiesMsg:     "BlockBodies",
	NewBlockMsg:        "NewBlock",
	GetReceiptsMsg:     "GetReceipts",
	ReceiptsMsg:        "Receipts",
}

// MessageName 返回消息码的可读名称，用于日志与指标标签
func MessageName(code uint64) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	if proto, ok := ProtocolForCode(code); ok {
		return fmt.Sprintf("%s/0x%02x", proto, code)
	}
	return fmt.Sprintf("unknown/0x%02x", code)
}
