package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PayloadSize is the fixed payload size of every frame on the kiosk bus.
const PayloadSize = 8

// MaxStandardID is the largest standard (11-bit) arbitration identifier.
const MaxStandardID = 0x7FF

// Frame validation errors.
var (
	ErrInvalidID  = errors.New("canbus: invalid identifier")
	ErrInvalidLen = errors.New("canbus: invalid data length")
)

// Frame represents one classical CAN frame with a standard identifier.
// A Frame is a value: received frames are never mutated, outbound frames are
// constructed fresh for each send.
type Frame struct {
	ID   uint32 // 11-bit arbitration identifier
	Len  uint8  // 0..8
	Data [PayloadSize]byte
}

// NewFrame constructs a full-length frame from the given payload bytes.
// Payloads shorter than PayloadSize are zero-padded.
func NewFrame(id uint32, data []byte) (Frame, error) {
	if len(data) > PayloadSize {
		return Frame{}, ErrInvalidLen
	}
	f := Frame{ID: id, Len: uint8(len(data))}
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if f.Len > PayloadSize {
		return ErrInvalidLen
	}
	if f.ID > MaxStandardID {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the significant data bytes.
func (f Frame) Payload() []byte {
	return f.Data[:f.Len]
}

// String formats the frame for diagnostics, e.g. "0DA#0201001E00000000".
func (f Frame) String() string {
	return fmt.Sprintf("%03X#%X", f.ID, f.Data[:f.Len])
}

// frameWireSize is the size of the Linux SocketCAN can_frame layout.
const frameWireSize = 16

// MarshalBinary encodes the frame to the Linux SocketCAN "struct can_frame"
// layout (16 bytes) for classical CAN.
//
// Layout (little-endian):
//
//	0..3  can_id
//	4     can_dlc (data length code)
//	5..7  padding (set to zero)
//	8..15 data bytes
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, frameWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = f.Len
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the Linux SocketCAN can_frame layout.
// Extended-identifier and error-flag bits are masked off; the kiosk bus only
// carries standard identifiers.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < frameWireSize {
		return fmt.Errorf("canbus: need %d bytes, got %d", frameWireSize, len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	f.ID = id & MaxStandardID
	f.Len = data[4]
	copy(f.Data[:], data[8:16])
	return f.Validate()
}
