package wire

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// Msg 已成帧的消息：消息码与 RLP 负载
type Msg struct {
	Code    uint64
	Payload []byte
}

// Size 返回负载长度
func (m Msg) Size() int {
	return len(m.Payload)
}

// Encode 将消息编码为 Msg
func Encode(m Message) (Msg, error) {
	switch raw := m.(type) {
	case RawMessage:
		return Msg{Code: raw.MsgCode, Payload: raw.Payload}, nil
	case *RawMessage:
		return Msg{Code: raw.MsgCode, Payload: raw.Payload}, nil
	}
	payload, err := rlp.EncodeToBytes(m)
	if err != nil {
		return Msg{}, fmt.Errorf("wire: encode %s: %w", MessageName(m.Code()), err)
	}
	return Msg{Code: m.Code(), Payload: payload}, nil
}

// Decode 将 Msg 解码为具体消息类型
//
// 已知能力区间内未建模的消息码返回 *RawMessage；
// 不属于任何区间的消息码返回 ErrUnknownCode。
func Decode(msg Msg) (Message, error) {
	var m Message
	switch msg.Code {
	case HelloMsg:
		m = new(Hello)
	case DisconnectMsg:
		m = new(Disconnect)
	case PingMsg:
		m = new(Ping)
	case PongMsg:
		m = new(Pong)
	case StatusMsg:
		m = new(Status)
	case NewBlockHashesMsg:
		m = new(NewBlockHashes)
	case TransactionsMsg:
		m = new(Transactions)
	case NewBlockMsg:
		m = new(NewBlock)
	case GetBlockHeadersMsg:
		m = new(GetBlockHeaders)
	case BlockHeadersMsg:
		m = new(BlockHeaders)
	case GetBlockBodiesMsg:
		m = new(GetBlockBodies)
	case BlockBodiesMsg:
		m = new(BlockBodies)
	case GetReceiptsMsg:
		m = new(GetReceipts)
	case ReceiptsMsg:
		m = new(Receipts)
	default:
		if _, ok := ProtocolForCode(msg.Code); ok {
			return &RawMessage{MsgCode: msg.Code, Payload: msg.Payload}, nil
		}
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCode, msg.Code)
	}
	if err := rlp.DecodeBytes(msg.Payload, m); err != nil {
		return nil, &DecodeError{Code: msg.Code, Err: err}
	}
	return m, nil
}
