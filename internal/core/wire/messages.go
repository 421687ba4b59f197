package wire

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Message 可在会话上传输的消息
type Message interface {
	Code() uint64
}

// Request 需要对端以 Response 应答的消息
//
// 请求 ID 由会话在发送前分配，调用方无需设置。
type Request interface {
	Message
	RequestID() uint64
	SetRequestID(id uint64)
}

// Response 携带请求 ID 的应答消息
type Response interface {
	Message
	RequestID() uint64
}

// ============================================================================
// 基础协议
// ============================================================================

// Hello 握手首条消息
type Hello struct {
	Version    uint64
	ClientID   string
	Caps       []types.Capability
	ListenPort uint64
	ID         []byte

	// 兼容后续版本追加的字段
	Rest []rlp.RawValue `rlp:"tail"`
}

// Disconnect 断开通知
type Disconnect struct {
	Reason types.DisconnectReason
}

// Ping 心跳请求
type Ping struct{}

// Pong 心跳应答
type Pong struct{}

func (Hello) Code() uint64      { return HelloMsg }
func (Disconnect) Code() uint64 { return DisconnectMsg }
func (Ping) Code() uint64       { return PingMsg }
func (Pong) Code() uint64       { return PongMsg }

// ============================================================================
// eth
// ============================================================================

// Status eth 握手消息
type Status struct {
	ProtocolVersion uint32
	NetworkID       uint64
	TD              *big.Int
	Head            common.Hash
	Genesis         common.Hash
}

// BlockAnnounce 区块哈希公告条目
type BlockAnnounce struct {
	Hash   common.Hash
	Number uint64
}

// NewBlockHashes 新区块哈希公告
type NewBlockHashes []BlockAnnounce

// Transactions 交易广播，交易体保持原始 RLP
type Transactions []rlp.RawValue

// NewBlock 完整新区块广播
//
// Hash 与 Number 随区块一起传输，接收方无需解析区块体即可记录已知区块。
type NewBlock struct {
	Hash   common.Hash
	Number uint64
	Block  rlp.RawValue
	TD     *big.Int
}

// HashOrNumber 以哈希或高度指定起始区块
type HashOrNumber struct {
	Hash   common.Hash
	Number uint64
}

// EncodeRLP 只编码两个字段中被设置的一个
func (hn HashOrNumber) EncodeRLP(w io.Writer) error {
	if hn.Hash == (common.Hash{}) {
		return rlp.Encode(w, hn.Number)
	}
	if hn.Number != 0 {
		return fmt.Errorf("both origin hash (%x) and number (%d) provided", hn.Hash, hn.Number)
	}
	return rlp.Encode(w, hn.Hash)
}

// DecodeRLP 按长度区分哈希与高度
func (hn *HashOrNumber) DecodeRLP(s *rlp.Stream) error {
	_, size, err := s.Kind()
	if err != nil {
		return err
	}
	origin, err := s.Raw()
	if err != nil {
		return err
	}
	switch {
	case size == 32:
		return rlp.DecodeBytes(origin, &hn.Hash)
	case size <= 8:
		return rlp.DecodeBytes(origin, &hn.Number)
	default:
		return fmt.Errorf("invalid input size %d for origin", size)
	}
}

// GetBlockHeaders 区块头请求
type GetBlockHeaders struct {
	ID      uint64
	Origin  HashOrNumber
	Amount  uint64
	Skip    uint64
	Reverse bool
}

// BlockHeaders 区块头应答
type BlockHeaders struct {
	ID      uint64
	Headers []rlp.RawValue
}

// GetBlockBodies 区块体请求
type GetBlockBodies struct {
	ID     uint64
	Hashes []common.Hash
}

// BlockBodies 区块体应答
type BlockBodies struct {
	ID     uint64
	Bodies []rlp.RawValue
}

// GetReceipts 收据请求
type GetReceipts struct {
	ID     uint64
	Hashes []common.Hash
}

// Receipts 收据应答
type Receipts struct {
	ID       uint64
	Receipts []rlp.RawValue
}

func (Status) Code() uint64          { return StatusMsg }
func (NewBlockHashes) Code() uint64  { return NewBlockHashesMsg }
func (Transactions) Code() uint64    { return TransactionsMsg }
func (NewBlock) Code() uint64        { return NewBlockMsg }
func (GetBlockHeaders) Code() uint64 { return GetBlockHeadersMsg }
func (BlockHeaders) Code() uint64    { return BlockHeadersMsg }
func (GetBlockBodies) Code() uint64  { return GetBlockBodiesMsg }
func (BlockBodies) Code() uint64     { return BlockBodiesMsg }
func (GetReceipts) Code() uint64     { return GetReceiptsMsg }
func (Receipts) Code() uint64        { return ReceiptsMsg }

func (m *GetBlockHeaders) RequestID() uint64     { return m.ID }
func (m *GetBlockHeaders) SetRequestID(id uint64) { m.ID = id }
func (m *GetBlockBodies) RequestID() uint64      { return m.ID }
func (m *GetBlockBodies) SetRequestID(id uint64)  { m.ID = id }
func (m *GetReceipts) RequestID() uint64         { return m.ID }
func (m *GetReceipts) SetRequestID(id uint64)     { m.ID = id }

func (m *BlockHeaders) RequestID() uint64 { return m.ID }
func (m *BlockBodies) RequestID() uint64  { return m.ID }
func (m *Receipts) RequestID() uint64     { return m.ID }

// ============================================================================
// 原始消息
// ============================================================================

// RawMessage 未建模的能力消息（例如 snap），负载保持原始 RLP
type RawMessage struct {
	MsgCode uint64
	Payload []byte
}

// Code 返回消息码
func (m RawMessage) Code() uint64 { return m.MsgCode }

var (
	_ Request  = (*GetBlockHeaders)(nil)
	_ Request  = (*GetBlockBodies)(nil)
	_ Request  = (*GetReceipts)(nil)
	_ Response = (*BlockHeaders)(nil)
	_ Response = (*BlockBodies)(nil)
	_ Response = (*Receipts)(nil)
)
