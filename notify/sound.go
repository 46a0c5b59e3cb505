package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// SoundSink plays an mp3 on every shake.
type SoundSink struct {
	data   []byte
	format beep.Format
}

// NewSoundSink loads the mp3 at path and checks that it decodes.
func NewSoundSink(path string) (*SoundSink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sound: %w", err)
	}
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	streamer.Close()

	return &SoundSink{data: data, format: format}, nil
}

// Notify plays the sound and waits for it to finish.
func (s *SoundSink) Notify(ctx context.Context, _ Event) error {
	streamer, _, err := mp3.Decode(io.NopCloser(bytes.NewReader(s.data)))
	if err != nil {
		return err
	}
	defer streamer.Close()

	speakerOnce.Do(func() {
		speakerErr = speaker.Init(s.format.SampleRate, s.format.SampleRate.N(time.Second/10))
	})
	if speakerErr != nil {
		return fmt.Errorf("initializing speaker: %w", speakerErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
