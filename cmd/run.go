// Copyright © 2016 Tobias Wellnitz, DH1TW <Tobias.Wellnitz@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.


package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/audio/nodes/doorman"
	"github.com/dh1tw/streamgraph/audio/nodes/mixer"
	"github.com/dh1tw/streamgraph/audio/nodes/vox"
	"github.com/dh1tw/streamgraph/audio/sinks/pbWriter"
	"github.com/dh1tw/streamgraph/audio/sinks/scWriter"
	"github.com/dh1tw/streamgraph/audio/sinks/wavWriter"
	"github.com/dh1tw/streamgraph/audio/sources/pbReader"
	"github.com/dh1tw/streamgraph/audio/sources/scReader"
	"github.com/dh1tw/streamgraph/audio/sources/wavReader"
	"github.com/dh1tw/streamgraph/audiocodec/opus"
	"github.com/dh1tw/streamgraph/graph"
	"github.com/dh1tw/streamgraph/webserver"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mix the configured audio sources and play them out",
	Long: `Mix the configured audio sources and play them out.

Sources are a wav file, a local sound card and audio frames received via
NATS. The mix is played on a local sound card, recorded into a wav file
and/or published via NATS. When a sound card is used for playback, its
callbacks drive the graph; otherwise a system timer does.

In order to find the supported audio devices and audio host APIs
for your platform run:

$ streamgraph(.exe) enumerate
`,
	RunE: run,
}

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().Duration("interval", 10*time.Millisecond, "graph iteration interval")
	runCmd.Flags().Int("samplerate", 48000, "samplerate of the mix")
	runCmd.Flags().Int("channels", 2, "channels of the mix")
	runCmd.Flags().Duration("low-water-mark", 100*time.Millisecond, "data a source buffers ahead")
	runCmd.Flags().Duration("max-buffered", 2*time.Second, "max data a source may buffer ahead (0 = unlimited)")

	runCmd.Flags().String("input-wav", "", "wav file to play")
	runCmd.Flags().StringP("input-device", "i", "", "input (capture) device; empty disables capture")
	runCmd.Flags().StringP("output-device", "o", "default", "output (playback) device; empty disables playback")
	runCmd.Flags().String("output-wav", "", "wav file to record the mix into")
	runCmd.Flags().Float64("volume", 0.7, "volume of the mix [0...1]")
	runCmd.Flags().Float32("vox-threshold", 0.1, "level above which the mix is published via NATS")

	runCmd.Flags().StringP("nats-url", "u", "", "NATS server url; empty disables networking")
	runCmd.Flags().String("nats-subject-in", "streamgraph.audio.in", "subject audio frames are received on")
	runCmd.Flags().String("nats-subject-out", "streamgraph.audio.out", "subject the mix is published on")
	runCmd.Flags().String("user", "streamgraph", "user id sent with the published frames")
	runCmd.Flags().Int("opus-bitrate", 24000, "opus bitrate")
	runCmd.Flags().Int("opus-complexity", 5, "opus complexity [0...10]")
	runCmd.Flags().String("opus-max-bandwidth", "wideband", "opus max bandwidth")

	runCmd.Flags().StringP("web-address", "w", "127.0.0.1:6060", "address of the control webserver; empty disables it")

	viper.BindPFlag("graph.interval", runCmd.Flags().Lookup("interval"))
	viper.BindPFlag("graph.samplerate", runCmd.Flags().Lookup("samplerate"))
	viper.BindPFlag("graph.channels", runCmd.Flags().Lookup("channels"))
	viper.BindPFlag("graph.low-water-mark", runCmd.Flags().Lookup("low-water-mark"))
	viper.BindPFlag("graph.max-buffered", runCmd.Flags().Lookup("max-buffered"))
	viper.BindPFlag("input.wav", runCmd.Flags().Lookup("input-wav"))
	viper.BindPFlag("input.device", runCmd.Flags().Lookup("input-device"))
	viper.BindPFlag("output.device", runCmd.Flags().Lookup("output-device"))
	viper.BindPFlag("output.wav", runCmd.Flags().Lookup("output-wav"))
	viper.BindPFlag("output.volume", runCmd.Flags().Lookup("volume"))
	viper.BindPFlag("output.vox-threshold", runCmd.Flags().Lookup("vox-threshold"))
	viper.BindPFlag("nats.url", runCmd.Flags().Lookup("nats-url"))
	viper.BindPFlag("nats.subject-in", runCmd.Flags().Lookup("nats-subject-in"))
	viper.BindPFlag("nats.subject-out", runCmd.Flags().Lookup("nats-subject-out"))
	viper.BindPFlag("nats.user", runCmd.Flags().Lookup("user"))
	viper.BindPFlag("opus.bitrate", runCmd.Flags().Lookup("opus-bitrate"))
	viper.BindPFlag("opus.complexity", runCmd.Flags().Lookup("opus-complexity"))
	viper.BindPFlag("opus.max-bandwidth", runCmd.Flags().Lookup("opus-max-bandwidth"))
	viper.BindPFlag("web.address", runCmd.Flags().Lookup("web-address"))
}

func run(cmd *cobra.Command, args []string) error {

	if err := readConfig(); err != nil {
		return err
	}
	setupLogger()

	// check if values from config file / pflags are valid
	if err := checkParameterValues(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx)
}

// app holds the graph and everything connected to it.
type app struct {
	log     *slog.Logger
	graph   *graph.Graph
	router  *audio.DefaultRouter
	web     *webserver.WebServer
	nc      *nats.Conn
	sub     *nats.Subscription
	closers []func() error
	starts  []func() error
	streams []*graph.Stream
	pa      bool
}

func newApp() (*app, error) {

	// viper settings need to be copied in local variables
	// since viper lookups allocate of each lookup a copy
	// and are quite unperformant
	interval := viper.GetDuration("graph.interval")
	rate := graph.TrackRate(viper.GetInt("graph.samplerate"))
	channels := viper.GetInt("graph.channels")
	inWav := viper.GetString("input.wav")
	inDevice := viper.GetString("input.device")
	outDevice := viper.GetString("output.device")
	outWav := viper.GetString("output.wav")
	volume := float32(viper.GetFloat64("output.volume"))
	natsURL := viper.GetString("nats.url")
	webAddress := viper.GetString("web.address")

	if natsURL != "" && rate != 48000 {
		return nil, &parmError{
			parm: "graph.samplerate",
			msg:  "must be 48000 when receiving audio via NATS",
		}
	}

	a := &app{
		log:    slog.Default().With("component", "app"),
		router: audio.NewDefaultRouter(),
	}

	if inDevice != "" || outDevice != "" {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("unable to initialize portaudio: %w", err)
		}
		a.pa = true
	}

	framesPerBuffer := int(float64(rate) * interval.Seconds())

	// the sound card's callbacks are the heartbeat of the graph if there
	// is one; the system clock otherwise
	var driver graph.Driver = graph.NewSystemClockDriver(interval)
	if outDevice != "" {
		scw, err := scWriter.NewScWriter(
			scWriter.DeviceName(outDevice),
			scWriter.Channels(channels),
			scWriter.Samplerate(float64(rate)),
			scWriter.FramesPerBuffer(framesPerBuffer),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		a.router.AddSink("speaker", scw, true)
		a.starts = append(a.starts, scw.Start)
		a.closers = append(a.closers, scw.Close)
		driver = graph.NewHeartbeatDriver(scw.Heartbeat())
	}

	if outWav != "" {
		ww, err := wavWriter.NewWavWriter(outWav,
			wavWriter.Channels(channels),
			wavWriter.Samplerate(float64(rate)),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		a.router.AddSink("recorder", ww, true)
		a.starts = append(a.starts, ww.Start)
		a.closers = append(a.closers, ww.Close)
	}

	a.graph = graph.New(
		graph.WithDriver(driver),
		graph.WithSampleRate(rate),
		graph.WithChannels(channels),
		graph.WithLowWaterMark(viper.GetDuration("graph.low-water-mark")),
		graph.WithMaxBufferedDuration(viper.GetDuration("graph.max-buffered")),
		graph.WithAudioSink(a.router),
	)

	mix := mixer.New(mixer.Samplerate(rate), mixer.Channels(channels))
	mixStream := a.graph.CreateProcessedStream(mix)

	if inWav != "" {
		s := a.graph.CreateSourceStream()
		wr, err := wavReader.NewWavReader(inWav, s, wavReader.Samplerate(rate))
		if err != nil {
			a.close()
			return nil, err
		}
		a.connect(mixStream, &s.Stream)
		a.starts = append(a.starts, wr.Start)
		a.closers = append(a.closers, wr.Close)
	}

	if inDevice != "" {
		s := a.graph.CreateSourceStream()
		scr, err := scReader.NewScReader(s,
			scReader.DeviceName(inDevice),
			scReader.Samplerate(float64(rate)),
			scReader.FramesPerBuffer(framesPerBuffer),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		a.connect(mixStream, &s.Stream)
		a.starts = append(a.starts, scr.Start)
		a.closers = append(a.closers, scr.Close)
	}

	voxOpts := []vox.Option{vox.Threshold(float32(viper.GetFloat64("output.vox-threshold")))}

	if natsURL != "" {
		if err := a.setupNats(natsURL, mixStream); err != nil {
			a.close()
			return nil, err
		}
		voxOpts = append(voxOpts, vox.Enabled(true), vox.StateChanged(func(on bool) {
			a.log.Info("vox", "active", on)
			if err := a.router.EnableSink("network", on); err != nil {
				a.log.Warn("unable to switch network sink", "error", err)
			}
		}))
	}

	out := a.graph.CreateProcessedStream(vox.New(voxOpts...))
	out.AllocateInputPort(mixStream, 0)
	out.AddAudioOutput("main", volume)
	a.streams = append(a.streams, &mixStream.Stream, &out.Stream)

	if webAddress != "" {
		a.web = webserver.NewWebServer(a.graph, webserver.Address(webAddress))
		for _, s := range a.streams {
			a.web.Watch(s)
		}
	}

	a.graph.FlushPendingChanges()
	return a, nil
}

// setupNats connects to the NATS server. Received frames are fed into a
// source stream behind a doorman, so only one remote user is heard at a
// time; the mix is published on the outgoing subject.
func (a *app) setupNats(url string, mixStream *graph.ProcessedStream) error {
	nc, err := nats.Connect(url, nats.Name("streamgraph"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			a.log.Warn("disconnected from NATS server", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			a.log.Info("reconnected to NATS server", "url", nc.ConnectedUrl())
		}))
	if err != nil {
		return fmt.Errorf("unable to connect to NATS server %s: %w", url, err)
	}
	a.nc = nc

	s := a.graph.CreateSourceStream()
	pbr := pbReader.NewPbReader(s)
	a.starts = append(a.starts, pbr.Start)
	a.closers = append(a.closers, pbr.Close)

	dm := doorman.NewDoorman(doorman.TXUserChanged(func(id graph.TrackID) {
		if id == graph.TrackInvalid {
			a.log.Info("nobody transmitting")
			return
		}
		user, _ := pbr.User(id)
		a.log.Info("transmitting", "user", user, "track", id)
	}))
	ds := a.graph.CreateProcessedStream(dm)
	ds.AllocateInputPort(s, 0)
	a.connect(mixStream, &ds.Stream)
	a.streams = append(a.streams, &s.Stream)

	a.sub, err = nc.Subscribe(viper.GetString("nats.subject-in"), func(m *nats.Msg) {
		if err := pbr.Enqueue(m.Data); err != nil {
			a.log.Warn("dropping audio frame", "error", err)
		}
	})
	if err != nil {
		return err
	}

	maxBw, _ := getOpusMaxBandwith(viper.GetString("opus.max-bandwidth"))
	enc, err := opus.NewEncoder(
		opus.Channels(1),
		opus.Bitrate(viper.GetInt("opus.bitrate")),
		opus.Complexity(viper.GetInt("opus.complexity")),
		opus.MaxBandwidth(maxBw),
	)
	if err != nil {
		return err
	}

	subjectOut := viper.GetString("nats.subject-out")
	pbw, err := pbWriter.NewPbWriter(
		pbWriter.Encoder(enc),
		pbWriter.UserID(viper.GetString("nats.user")),
		pbWriter.ToWireCb(func(data []byte) {
			if err := nc.Publish(subjectOut, data); err != nil {
				a.log.Warn("unable to publish audio frame", "error", err)
			}
		}),
	)
	if err != nil {
		return err
	}
	// the vox enables the network sink
	a.router.AddSink("network", pbw, false)
	a.starts = append(a.starts, pbw.Start)
	a.closers = append(a.closers, pbw.Close)
	return nil
}

// connect feeds s into the mixer and keeps track of it.
func (a *app) connect(mixStream *graph.ProcessedStream, s *graph.Stream) {
	mixStream.AllocateInputPort(s, 0)
	a.streams = append(a.streams, s)
}

func (a *app) run(ctx context.Context) error {
	if err := a.graph.Init(); err != nil {
		return err
	}

	for _, start := range a.starts {
		if err := start(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.web != nil {
		g.Go(func() error {
			return a.web.ListenAndServe(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down")
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) close() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
	if a.graph != nil {
		a.graph.Shutdown()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("error while closing", "error", err)
		}
	}
	a.closers = nil
	if a.nc != nil {
		a.nc.Drain()
	}
	if a.pa {
		portaudio.Terminate()
		a.pa = false
	}
}
