package pbReader

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dh1tw/streamgraph/audiocodec"
	"github.com/dh1tw/streamgraph/audiocodec/opus"
	"github.com/dh1tw/streamgraph/graph"
	sbAudio "github.com/dh1tw/streamgraph/sb_audio"
)

// rate of all tracks; opus only likes 48kHz
const rate graph.TrackRate = 48000

// ErrUnknownCodec is returned for frames encoded with a codec the reader
// can not decode.
var ErrUnknownCodec = errors.New("unknown codec")

// user is a remote sender and the track its audio is appended to.
type user struct {
	track    graph.TrackID
	channels int
	decoder  audiocodec.Decoder
	lastSeen time.Time
	added    bool
	end      graph.TrackTicks
}

// PbReader is used to read audio frames encapsulated in Protocol Buffer
// messages, typically received from the network, into a
// graph.SourceStream. Every user sending audio gets its own track, which is
// ended once the user stops sending.
type PbReader struct {
	sync.RWMutex
	log                *slog.Logger
	options            Options
	target             *graph.SourceStream
	enabled            bool
	users              map[string]*user
	nextTrack          graph.TrackID
	known              graph.StreamTime
	emptyUserIDWarning sync.Once
	stop               chan struct{}
	done               chan struct{}
}

// NewPbReader is the constructor for a PbReader feeding target.
func NewPbReader(target *graph.SourceStream, opts ...Option) *PbReader {

	pbr := &PbReader{
		options: Options{
			IdleTimeout:  200 * time.Millisecond,
			ReapInterval: 100 * time.Millisecond,
			Logger:       slog.Default(),
		},
		target:    target,
		users:     make(map[string]*user),
		nextTrack: 1,
	}

	for _, o := range opts {
		o(&pbr.options)
	}
	pbr.log = pbr.options.Logger.With("component", "pbReader", "stream", target.ID())

	return pbr
}

// Start processing Protobufs and looking for idle users.
func (pbr *PbReader) Start() error {
	pbr.Lock()
	defer pbr.Unlock()
	if pbr.enabled {
		return nil
	}
	pbr.enabled = true
	pbr.stop = make(chan struct{})
	pbr.done = make(chan struct{})
	go pbr.reaper(pbr.stop, pbr.done)
	return nil
}

// Stop processing Protobufs. The tracks of all users are ended.
func (pbr *PbReader) Stop() error {
	pbr.Lock()
	if !pbr.enabled {
		pbr.Unlock()
		return nil
	}
	pbr.enabled = false
	close(pbr.stop)
	done := pbr.done
	for name, u := range pbr.users {
		pbr.target.EndTrack(u.track)
		delete(pbr.users, name)
	}
	pbr.Unlock()

	<-done
	return nil
}

// Close stops the reader and finishes the source stream.
func (pbr *PbReader) Close() error {
	pbr.Stop()
	pbr.target.Finish()
	return nil
}

// Users returns the track of every user currently sending audio.
func (pbr *PbReader) Users() map[string]graph.TrackID {
	pbr.RLock()
	defer pbr.RUnlock()
	res := make(map[string]graph.TrackID, len(pbr.users))
	for name, u := range pbr.users {
		res[name] = u.track
	}
	return res
}

// User returns the name of the user whose audio is appended to track id.
func (pbr *PbReader) User(id graph.TrackID) (string, bool) {
	pbr.RLock()
	defer pbr.RUnlock()
	for name, u := range pbr.users {
		if u.track == id {
			return name, true
		}
	}
	return "", false
}

// Enqueue is the entry point for the PbReader. Incoming Protobufs
// are enqueued with this function.
func (pbr *PbReader) Enqueue(data []byte) error {
	return pbr.enqueue(data, time.Now())
}

func (pbr *PbReader) enqueue(data []byte, now time.Time) error {
	pbr.Lock()
	defer pbr.Unlock()

	if !pbr.enabled {
		return nil
	}

	if len(data) == 0 {
		pbr.log.Warn("incoming audio frame empty")
		return nil
	}

	msg := sbAudio.Frame{}
	if err := msg.Unmarshal(data); err != nil {
		return err
	}

	channels := msg.GetChannels().Count()
	if channels == 0 {
		return fmt.Errorf("unsupported amount of channels: %d", msg.GetChannels())
	}

	if len(msg.Data) == 0 {
		pbr.log.Warn("incoming protobuf audio frame empty")
		return nil
	}

	if len(msg.GetUserId()) == 0 {
		msg.UserId = "unknown-client"
		pbr.emptyUserIDWarning.Do(func() {
			pbr.log.Warn("incoming audio frames from unknown user; consider setting the username on the client")
		})
	}

	if msg.GetCodec() != sbAudio.Codec_opus {
		return fmt.Errorf("%w %v", ErrUnknownCodec, msg.GetCodec())
	}

	// we can not use the same opus decoder when packets of multiple
	// users arrive at the same time. Therefore every user gets its own
	// decoder.
	u, err := pbr.user(msg.GetUserId(), channels)
	if err != nil {
		return err
	}

	buf := make([]float32, int(msg.GetFrameLength())*channels)
	num, err := u.decoder.Decode(msg.Data, buf)
	if err != nil {
		return fmt.Errorf("unable to decode frame from user '%s': %w", msg.GetUserId(), err)
	}
	u.lastSeen = now

	seg := graph.NewAudioSegment()
	seg.AppendFrames(buf[:num*channels], channels)
	return pbr.push(msg.GetUserId(), u, seg)
}

// user returns the sender name, creating a decoder for it if necessary.
func (pbr *PbReader) user(name string, channels int) (*user, error) {
	u, ok := pbr.users[name]
	if ok && u.channels == channels {
		return u, nil
	}

	// a user who switched between mono and stereo needs a new decoder
	dec, err := opus.NewOpusDecoder(opus.Channels(channels), opus.Samplerate(int(rate)))
	if err != nil {
		return nil, err
	}
	if ok {
		u.decoder = dec
		u.channels = channels
		return u, nil
	}

	u = &user{
		track:    pbr.nextTrack,
		channels: channels,
		decoder:  dec,
	}
	pbr.nextTrack++
	pbr.users[name] = u
	pbr.log.Info("new user", "user", name, "track", u.track)
	return u, nil
}

// push appends seg to the user's track. A new track starts at the later of
// the stream's current time and the end of the audio already known, so
// tracks are never added in the past.
func (pbr *PbReader) push(name string, u *user, seg *graph.AudioSegment) error {
	d := seg.Duration()
	if !u.added {
		start := max(pbr.target.CurrentTime(), pbr.known)
		u.end = graph.TimeToTicksRoundUp(rate, start)
		pbr.target.AddTrack(u.track, rate, u.end, seg)
		u.added = true
	} else if !pbr.target.AppendToTrack(u.track, seg) {
		delete(pbr.users, name)
		return fmt.Errorf("stream does not accept audio from user '%s'", name)
	}
	u.end += d

	pbr.known = max(pbr.known, graph.TicksToTimeRoundDown(rate, u.end))
	pbr.target.AdvanceKnownTracksTime(pbr.known)
	return nil
}

// reaper ends the tracks of idle users until stop is closed.
func (pbr *PbReader) reaper(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pbr.options.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			pbr.reap(now)
		}
	}
}

// reap ends the track of every user who has not sent a frame since the
// idle timeout.
func (pbr *PbReader) reap(now time.Time) {
	pbr.Lock()
	defer pbr.Unlock()
	for name, u := range pbr.users {
		if now.Sub(u.lastSeen) < pbr.options.IdleTimeout {
			continue
		}
		pbr.target.EndTrack(u.track)
		delete(pbr.users, name)
		pbr.log.Info("user went idle", "user", name, "track", u.track)
	}
}
