// Command pxplay loads a PxTone song and plays it through the default
// audio device, with Space to pause and Ctrl-C/Escape to quit.
// It is a thin wrapper around the pxtone package: all decoding and
// rendering lives there, this file only owns file I/O, the audio
// device, and the terminal.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"

	"github.com/pxcorego/pxtone/wav"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"

	pxtone "github.com/pxcorego/pxtone"
)

var (
	flagHz   = flag.Int("hz", 44100, "output sample rate in hz")
	flagLoop = flag.Bool("loop", false, "loop playback at the song's repeat point")
	flagWav  = flag.String("wav", "", "write rendered audio to this WAV file instead of playing it")
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pxplay: ")
	pxtone.SetLogger(log.Default())
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("missing PxTone filename")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	song, herd, err := pxtone.ReadSong(data, *flagHz)
	if err != nil {
		log.Fatal(err)
	}

	pxtone.MooPrepare(song, herd, *flagHz, pxtone.MooPlan{
		Start: pxtone.MooStart{Kind: pxtone.StartMeas, Meas: 0},
		Loop:  *flagLoop,
	})

	if *flagWav != "" {
		if err := renderToWav(song, herd, *flagWav, *flagHz); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := playLive(song, herd, *flagHz); err != nil {
		log.Fatal(err)
	}
}

// renderToWav drives Moo until it returns false, writing every produced
// frame to a WAV file - no audio device, no UI.
func renderToWav(song *pxtone.Song, herd *pxtone.Herd, path string, hz int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wav.NewWriter(f, hz)
	if err != nil {
		return err
	}

	buf := make([]int16, 4096)
	for herd.Moo(buf, song, true) {
		left := make([]int16, len(buf)/2)
		right := make([]int16, len(buf)/2)
		for i := 0; i < len(buf)/2; i++ {
			left[i] = buf[i*2]
			right[i] = buf[i*2+1]
		}
		if err := w.WriteFrame([][]int16{left, right}); err != nil {
			return err
		}
	}
	_, err = w.Finish()
	return err
}

// playLive streams audio to the default output device via portaudio,
// with Ctrl-C / Escape to quit and Space to pause, adapted from
// modplay's play.go keyboard + portaudio wiring.
func playLive(song *pxtone.Song, herd *pxtone.Herd, hz int) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	player := &livePlayer{song: song, herd: herd, playing: true}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(hz), portaudio.FramesPerBufferUnspecified, player.streamCallback)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			switch {
			case key.Code == keys.CtrlC || key.Code == keys.Escape:
				return true, nil
			case key.Code == keys.Space:
				player.playing = !player.playing
			}
			return false, nil
		})
		close(done)
	}()

	fmt.Print(hideCursor)
	defer fmt.Print(showCursor)

	white := color.New(color.FgWhite).SprintFunc()
	fmt.Println(white(song.Name))

	select {
	case <-sigch:
	case <-done:
	case <-player.stoppedCh():
	}
	return nil
}

type livePlayer struct {
	song      *pxtone.Song
	herd      *pxtone.Herd
	playing   bool
	stopped   bool
	stoppedFn chan struct{}
}

func (p *livePlayer) stoppedCh() chan struct{} {
	if p.stoppedFn == nil {
		p.stoppedFn = make(chan struct{})
	}
	return p.stoppedFn
}

func (p *livePlayer) streamCallback(out []int16) {
	if !p.playing {
		clear(out)
		return
	}
	if !p.herd.Moo(out, p.song, true) {
		clear(out)
		if !p.stopped {
			p.stopped = true
			close(p.stoppedCh())
		}
	}
}
