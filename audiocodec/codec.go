// Package audiocodec contains the interfaces implemented by the audio codecs
// used to send and receive audio frames over the network.
package audiocodec

// Encoder compresses interleaved pcm samples into data.
type Encoder interface {
	Name() string
	Encode([]float32, []byte) (int, error)
}

// Decoder decompresses data into interleaved pcm samples and returns the
// number of frames decoded.
type Decoder interface {
	Name() string
	Decode([]byte, []float32) (int, error)
}
