// Package mux encodes the master frame sequence at fixed fps and muxes it
// with the master audio track into the final container. It never gives up
// in one shot: a failed encode retries with an alternate frame-addressing
// pattern, a failed mux retries with alternate audio codec parameters, and
// the worst case degrades to a video-only file instead of aborting.
package mux

import (
	"fmt"
	"log"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type Options struct {
	FramesDir  string
	AudioPath  string // empty means no audio stream
	OutputPath string
	FPS        int
	Encoder    string // libx264 / h264_nvenc / h264_videotoolbox
	Quality    int
}

type Result struct {
	VideoPath string
	Degraded  bool
	Warnings  []string
}

// Mux runs the encode/mux retry ladder and returns the produced file.
func Mux(opts Options) (*Result, error) {
	res := &Result{VideoPath: opts.OutputPath}

	primaryAudio := ffmpeg.KwArgs{"c:a": "aac", "b:a": "192k"}
	fallbackAudio := ffmpeg.KwArgs{"c:a": "aac", "b:a": "128k", "ar": "44100", "ac": 1}

	withAudio := opts.AudioPath != ""

	err := run(opts, false, withAudio, primaryAudio)
	if err == nil {
		return res, nil
	}
	log.Printf("[!] Ошибка кодирования, пробую альтернативную адресацию кадров: %v", err)
	res.Warnings = append(res.Warnings, "encode retried with glob frame pattern")

	err = run(opts, true, withAudio, primaryAudio)
	if err == nil {
		return res, nil
	}

	if withAudio {
		log.Printf("[!] Ошибка мультиплексирования, пробую альтернативные параметры аудио: %v", err)
		res.Warnings = append(res.Warnings, "mux retried with alternate audio codec parameters")
		if err = run(opts, false, true, fallbackAudio); err == nil {
			return res, nil
		}

		log.Printf("[!] Аудио не удалось подмешать, собираю видео без звука: %v", err)
		if err = run(opts, false, false, nil); err == nil {
			res.Degraded = true
			res.Warnings = append(res.Warnings, "degraded result: video-only, audio could not be muxed")
			return res, nil
		}
	}

	return nil, fmt.Errorf("все попытки кодирования исчерпаны: %w; кадры сохранены в %s (ffmpeg -framerate %d -i frame_%%06d.png)",
		err, opts.FramesDir, opts.FPS)
}

func run(opts Options, globPattern, withAudio bool, audioArgs ffmpeg.KwArgs) error {
	var in *ffmpeg.Stream
	if globPattern {
		in = ffmpeg.Input(filepath.Join(opts.FramesDir, "*.png"), ffmpeg.KwArgs{
			"pattern_type": "glob",
			"framerate":    opts.FPS,
		})
	} else {
		in = ffmpeg.Input(filepath.Join(opts.FramesDir, "frame_%06d.png"), ffmpeg.KwArgs{
			"framerate": opts.FPS,
		})
	}

	out := OutputArgs(opts.Encoder, opts.Quality, opts.FPS)

	if withAudio {
		for k, v := range audioArgs {
			out[k] = v
		}
		out["shortest"] = "" // более короткий поток определяет длительность
		audio := ffmpeg.Input(opts.AudioPath)
		return ffmpeg.Output([]*ffmpeg.Stream{in, audio}, opts.OutputPath, out).
			OverWriteOutput().Run()
	}

	return in.Output(opts.OutputPath, out).OverWriteOutput().Run()
}

// OutputArgs builds the encoder-specific output arguments. VideoToolbox
// takes a bitrate, NVENC a constant-quality value, x264 a CRF.
func OutputArgs(encoder string, quality, fps int) ffmpeg.KwArgs {
	out := ffmpeg.KwArgs{
		"c:v":     encoder,
		"pix_fmt": "yuv420p",
		"r":       fps,
	}
	switch encoder {
	case "h264_videotoolbox":
		out["b:v"] = fmt.Sprintf("%dk", quality*100)
	case "h264_nvenc":
		out["cq"] = quality
	default: // libx264
		out["crf"] = quality
		out["preset"] = "medium"
	}
	return out
}
