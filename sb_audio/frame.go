// Package sb_audio contains the wire format of the compressed audio frames
// exchanged over the network. A Frame is encoded as a protocol buffers
// message:
//
//	message Frame {
//	  bytes    data          = 1;
//	  Channels channels      = 2;
//	  int32    bit_depth     = 3;
//	  Codec    codec         = 4;
//	  int32    frame_length  = 5;
//	  int32    sampling_rate = 6;
//	  string   user_id       = 7;
//	}
package sb_audio

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Channels enumerates the channel layouts of a frame.
type Channels int32

const (
	Channels_unknown Channels = 0
	Channels_mono    Channels = 1
	Channels_stereo  Channels = 2
)

// Count returns the number of channels, 0 if unknown.
func (c Channels) Count() int {
	switch c {
	case Channels_mono:
		return 1
	case Channels_stereo:
		return 2
	}
	return 0
}

// ChannelsFromCount is the inverse of Channels.Count.
func ChannelsFromCount(n int) Channels {
	switch n {
	case 1:
		return Channels_mono
	case 2:
		return Channels_stereo
	}
	return Channels_unknown
}

// Codec enumerates the codecs a frame payload may be encoded with.
type Codec int32

const (
	Codec_none Codec = 0
	Codec_opus Codec = 1
	Codec_pcm  Codec = 2
)

func (c Codec) String() string {
	switch c {
	case Codec_opus:
		return "opus"
	case Codec_pcm:
		return "pcm"
	}
	return "none"
}

const (
	fieldData         protowire.Number = 1
	fieldChannels     protowire.Number = 2
	fieldBitDepth     protowire.Number = 3
	fieldCodec        protowire.Number = 4
	fieldFrameLength  protowire.Number = 5
	fieldSamplingRate protowire.Number = 6
	fieldUserID       protowire.Number = 7
)

// Frame is one compressed audio frame.
type Frame struct {
	Data         []byte
	Channels     Channels
	BitDepth     int32
	Codec        Codec
	FrameLength  int32
	SamplingRate int32
	UserId       string
}

func (f *Frame) GetChannels() Channels {
	if f == nil {
		return Channels_unknown
	}
	return f.Channels
}

func (f *Frame) GetCodec() Codec {
	if f == nil {
		return Codec_none
	}
	return f.Codec
}

func (f *Frame) GetFrameLength() int32 {
	if f == nil {
		return 0
	}
	return f.FrameLength
}

func (f *Frame) GetSamplingRate() int32 {
	if f == nil {
		return 0
	}
	return f.SamplingRate
}

func (f *Frame) GetUserId() string {
	if f == nil {
		return ""
	}
	return f.UserId
}

// ErrInvalidFrame is returned when a frame can not be decoded.
var ErrInvalidFrame = errors.New("invalid audio frame")

// Marshal encodes the frame. Fields holding their zero value are omitted.
func (f *Frame) Marshal() []byte {
	var b []byte
	if len(f.Data) > 0 {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Data)
	}
	b = appendVarint(b, fieldChannels, int64(f.Channels))
	b = appendVarint(b, fieldBitDepth, int64(f.BitDepth))
	b = appendVarint(b, fieldCodec, int64(f.Codec))
	b = appendVarint(b, fieldFrameLength, int64(f.FrameLength))
	b = appendVarint(b, fieldSamplingRate, int64(f.SamplingRate))
	if f.UserId != "" {
		b = protowire.AppendTag(b, fieldUserID, protowire.BytesType)
		b = protowire.AppendString(b, f.UserId)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// Unmarshal decodes b into f, replacing its content. Unknown fields are
// skipped.
func (f *Frame) Unmarshal(b []byte) error {
	*f = Frame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrInvalidFrame, protowire.ParseError(n))
			}
			f.Data = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldUserID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrInvalidFrame, protowire.ParseError(n))
			}
			f.UserId = v
			b = b[n:]
		case typ == protowire.VarintType && num >= fieldChannels && num <= fieldSamplingRate:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrInvalidFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldChannels:
				f.Channels = Channels(int32(v))
			case fieldBitDepth:
				f.BitDepth = int32(v)
			case fieldCodec:
				f.Codec = Codec(int32(v))
			case fieldFrameLength:
				f.FrameLength = int32(v)
			case fieldSamplingRate:
				f.SamplingRate = int32(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrInvalidFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
