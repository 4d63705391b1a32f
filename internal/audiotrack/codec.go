package audiotrack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
)

// FFmpegLoader decodes narration clips to mono s16le PCM through an ffmpeg
// pipe, so any container/codec the TTS collaborator produces is accepted.
type FFmpegLoader struct {
	FFmpegPath string
	SampleRate int
}

func NewFFmpegLoader() *FFmpegLoader {
	return &FFmpegLoader{FFmpegPath: "ffmpeg", SampleRate: DefaultSampleRate}
}

func (l *FFmpegLoader) Load(path string) ([]int16, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	cmd := exec.Command(l.FFmpegPath,
		"-v", "error",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", l.SampleRate),
		"-",
	)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode error: %v, log: %s", err, errOut.String())
	}
	return bytesToSamples(out.Bytes()), nil
}

// WriteWAV encodes the master buffer into a WAV file by piping raw PCM to
// ffmpeg, the same way raw RGBA frames are piped to the video encoder.
func WriteWAV(path string, samples []int16, sampleRate int) error {
	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-y",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-i", "-",
		path,
	)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if _, err := stdin.Write(samplesToBytes(samples)); err != nil {
		stdin.Close()
		return err
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wav encode error: %v, log: %s", err, errOut.String())
	}
	return nil
}

func bytesToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return raw
}
