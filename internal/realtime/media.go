package realtime

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// sampleDuration is the fixed Opus frame duration on the local track.
const sampleDuration = 20 * time.Millisecond

// AudioSource supplies encoded Opus samples for the local audio track.
// Encoding is delegated entirely to the source; the session only paces and
// forwards samples.
type AudioSource interface {
	// Start opens the source. A failure here is a MediaAccessError and is
	// fatal to session start.
	Start() error
	// Next blocks until the next sample is due and returns it. io.EOF once
	// the source is drained or stopped.
	Next() (media.Sample, error)
	// Stop releases the source. Idempotent.
	Stop() error
}

// opusSilence is a single Opus DTX frame. Sent when there is no real
// microphone input so the track stays alive.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SilentSource emits silence frames at the sample interval. It stands in
// for a microphone on machines without audio capture.
type SilentSource struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewSilentSource() *SilentSource {
	return &SilentSource{}
}

func (s *SilentSource) Start() error {
	s.ticker = time.NewTicker(sampleDuration)
	s.done = make(chan struct{})
	return nil
}

func (s *SilentSource) Next() (media.Sample, error) {
	select {
	case <-s.done:
		return media.Sample{}, io.EOF
	case <-s.ticker.C:
		return media.Sample{Data: opusSilence, Duration: sampleDuration}, nil
	}
}

func (s *SilentSource) Stop() error {
	select {
	case <-s.done:
	default:
		if s.done != nil {
			close(s.done)
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}
	}
	return nil
}

// FileSource streams an Ogg Opus file as the local audio, paced at the
// sample interval. Useful for demos and tests where no microphone exists.
type FileSource struct {
	Path string

	file   *os.File
	ogg    *oggreader.OggReader
	ticker *time.Ticker
	done   chan struct{}
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Start() error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("parse ogg: %w", err)
	}
	f.file = file
	f.ogg = ogg
	f.ticker = time.NewTicker(sampleDuration)
	f.done = make(chan struct{})
	return nil
}

func (f *FileSource) Next() (media.Sample, error) {
	select {
	case <-f.done:
		return media.Sample{}, io.EOF
	case <-f.ticker.C:
	}

	page, _, err := f.ogg.ParseNextPage()
	if err != nil {
		if err == io.EOF {
			return media.Sample{}, io.EOF
		}
		return media.Sample{}, fmt.Errorf("read ogg page: %w", err)
	}
	return media.Sample{Data: page, Duration: sampleDuration}, nil
}

func (f *FileSource) Stop() error {
	select {
	case <-f.done:
	default:
		if f.done != nil {
			close(f.done)
		}
		if f.ticker != nil {
			f.ticker.Stop()
		}
	}
	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}
