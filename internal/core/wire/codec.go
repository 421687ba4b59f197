package wire

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/multiformats/go-varint"
)

// frameRW 读写 varint 长度前缀 + snappy 压缩的消息帧
//
// 写端由调用方保证串行；读端同理。
type frameRW struct {
	r       *bufio.Reader
	w       io.Writer
	maxSize int
}

func newFrameRW(rw io.ReadWriter, maxSize int) *frameRW {
	return &frameRW{
		r:       bufio.NewReader(rw),
		w:       rw,
		maxSize: maxSize,
	}
}

// maxFrame 单帧最大长度（消息码 varint + 压缩负载）
func (f *frameRW) maxFrame() uint64 {
	return uint64(varint.MaxLenUvarint63 + snappy.MaxEncodedLen(f.maxSize))
}

// WriteMsg 写入一帧
func (f *frameRW) WriteMsg(msg Msg) error {
	if len(msg.Payload) > f.maxSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(msg.Payload), f.maxSize)
	}
	code := varint.ToUvarint(msg.Code)
	compressed := snappy.Encode(nil, msg.Payload)

	bodyLen := len(code) + len(compressed)
	frame := make([]byte, 0, varint.UvarintSize(uint64(bodyLen))+bodyLen)
	frame = append(frame, varint.ToUvarint(uint64(bodyLen))...)
	frame = append(frame, code...)
	frame = append(frame, compressed...)

	_, err := f.w.Write(frame)
	return err
}

// ReadMsg 读取一帧
func (f *frameRW) ReadMsg() (Msg, error) {
	bodyLen, err := varint.ReadUvarint(f.r)
	if err != nil {
		return Msg{}, err
	}
	if bodyLen > f.maxFrame() {
		return Msg{}, fmt.Errorf("%w: frame %d bytes", ErrMessageTooLarge, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return Msg{}, err
	}

	code, n, err := varint.FromUvarint(body)
	if err != nil {
		return Msg{}, fmt.Errorf("wire: read message code: %w", err)
	}
	compressed := body[n:]

	size, err := snappy.DecodedLen(compressed)
	if err != nil {
		return Msg{}, fmt.Errorf("wire: snappy: %w", err)
	}
	if size > f.maxSize {
		return Msg{}, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, f.maxSize)
	}
	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return Msg{}, fmt.Errorf("wire: snappy: %w", err)
	}
	return Msg{Code: code, Payload: payload}, nil
}
