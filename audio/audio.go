package audio

// Sink is the interface which is implemented by an audio sink. This could
// be an audio player, a file for recording or a network connection.
type Sink interface {
	Start() error
	Stop() error
	Close() error
	Write(Msg) error
	Flush()
}

// Msg contains an audio buffer with its metadata. Data holds Frames
// interleaved frames of Channels samples each.
type Msg struct {
	Data       []float32
	Samplerate float64
	Channels   int
	Frames     int
	EOF        bool
	Metadata   map[string]interface{}
}
