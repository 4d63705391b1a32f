package engine

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/storyreel/internal/audiotrack"
	"github.com/ivlev/storyreel/internal/caption"
	"github.com/ivlev/storyreel/internal/config"
	"github.com/ivlev/storyreel/internal/motion"
	"github.com/ivlev/storyreel/internal/mux"
	"github.com/ivlev/storyreel/internal/script"
	"github.com/ivlev/storyreel/internal/source"
	"github.com/ivlev/storyreel/internal/system"
	"github.com/ivlev/storyreel/internal/timeline"
	"github.com/ivlev/storyreel/internal/transition"
)

// Pipeline собирает один ролик: сегменты -> переходы -> таймлайн ->
// мастер-аудио -> мультиплексирование. Этапы строго последовательны,
// внутри этапа сегменты и переходы рендерятся параллельно.
type Pipeline struct {
	Config *config.Config
	Script *script.Script

	workDir  string
	warnings []string
	mu       sync.Mutex
}

// Result is what the caller always receives on any non-fatal path: a fully
// synced video, a degraded-but-usable one, or (with the returned error) the
// surviving artifacts for manual assembly.
type Result struct {
	VideoPath     string
	AudioPath     string
	FramesDir     string
	TotalDuration float64
	TotalFrames   int
	Degraded      bool
	Warnings      []string
}

func NewPipeline(cfg *config.Config, scr *script.Script) *Pipeline {
	return &Pipeline{Config: cfg, Script: scr}
}

func (p *Pipeline) warn(msg string) {
	p.mu.Lock()
	p.warnings = append(p.warnings, msg)
	p.mu.Unlock()
	log.Printf("[!] %s", msg)
}

func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	cfg := p.Config
	scr := p.Script
	scr.Normalize()

	var err error
	p.workDir = cfg.WorkDir
	if p.workDir == "" {
		p.workDir, err = os.MkdirTemp("", "storyreel_")
		if err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(p.workDir, 0755); err != nil {
		return nil, err
	}

	// Замеряем длительность озвучки там, где внешний TTS её не сообщил
	p.measureNarrations()

	segments := append([]script.Segment(nil), scr.Segments...)
	endCardIdx := -1
	if scr.Link != "" {
		endCardIdx = len(segments)
		segments = append(segments, script.Segment{
			ID:          len(segments) + 1,
			Caption:     scr.Link,
			Duration:    3.0,
			Motion:      script.MotionGentlePulse,
			CaptionMode: script.CaptionOverlay,
		})
	}

	fmt.Println("--- [PROJECT: TIMELINE COMPOSITOR] ---")
	fmt.Printf("[*] Сценарий: %s | Сегментов: %d\n", cfg.ScriptPath, len(segments))
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS\n", cfg.Width, cfg.Height, cfg.FPS)
	fmt.Println("--------------------------------------")

	captions, err := caption.NewRenderer(cfg.Width, cfg.Height)
	if err != nil {
		return nil, newFault(StageMotion, RenderFailure, "инициализация шрифта субтитров", err)
	}
	loader := &source.Loader{Width: cfg.Width, Height: cfg.Height}
	renderer := motion.NewRenderer(cfg.Width, cfg.Height, cfg.FPS, captions)

	// Директории создаются до старта воркеров, чтобы записи не требовали блокировок
	for i := range segments {
		if err := os.MkdirAll(p.segDir(i), 0755); err != nil {
			return nil, err
		}
	}
	for i := 0; i < len(segments)-1; i++ {
		if err := os.MkdirAll(p.transDir(i), 0755); err != nil {
			return nil, err
		}
	}

	// 1. Рендеринг сегментов (CPU bound)
	renderStart := time.Now()
	rendered := make([]*motion.SegmentFrames, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(system.RenderWorkers(cfg.Workers, cfg.Width, cfg.Height))

	for i := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seg := segments[i]

			var base *image.RGBA
			if i == endCardIdx {
				card, err := loader.EndCard(scr.Link)
				if err != nil {
					p.warn(fmt.Sprintf("QR-карточка не собралась (%v), использую заглушку", err))
					card = source.Placeholder(cfg.Width, cfg.Height, i)
				}
				base = source.PrepareBase(card, cfg.Width, cfg.Height)
			} else {
				base = loader.LoadBase(seg.Image, i)
			}

			frames, err := renderer.RenderSegment(base, motion.Params{
				Duration:     seg.EffectiveDuration(),
				Profile:      seg.Motion,
				Caption:      seg.Caption,
				CaptionMode:  seg.CaptionMode,
				SegmentIndex: i,
			}, p.segDir(i))
			if err != nil {
				return newFault(StageMotion, RenderFailure, fmt.Sprintf("сегмент %d", seg.ID), err)
			}
			rendered[i] = frames
			fmt.Printf("[>] Сегмент готов: %d/%d (%d кадров)\n", i+1, len(segments), frames.Count)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	renderTime := time.Since(renderStart)

	// 2. Переходы: фиксированная длительность, не зависят от длительностей сегментов
	transStart := time.Now()
	transFrames := motion.FrameCount(cfg.TransitionDur, cfg.FPS)

	tg, _ := errgroup.WithContext(ctx)
	tg.SetLimit(system.RenderWorkers(cfg.Workers, cfg.Width, cfg.Height))
	for i := 0; i < len(segments)-1; i++ {
		tg.Go(func() error {
			band := image.Rectangle{}
			if segments[i+1].Caption != "" {
				band = captions.Band()
			}
			_, err := transition.Render(rendered[i].Last, rendered[i+1].First, transition.Params{
				Kind:   segments[i].Transition,
				Frames: transFrames,
				Width:  cfg.Width,
				Height: cfg.Height,
				Band:   band,
				Seed:   int64(i + 1),
			}, p.transDir(i))
			if err != nil {
				return newFault(StageTransition, RenderFailure, fmt.Sprintf("переход %d-%d", i+1, i+2), err)
			}
			return nil
		})
	}
	if err := tg.Wait(); err != nil {
		return nil, err
	}
	transTime := time.Since(transStart)

	// 3. Компиляция таймлайна
	var chunks []timeline.Chunk
	for i, seg := range segments {
		chunks = append(chunks, timeline.Chunk{
			Dir:       p.segDir(i),
			SegmentID: seg.ID,
			Narration: seg.Narration,
		})
		if i < len(segments)-1 {
			chunks = append(chunks, timeline.Chunk{Dir: p.transDir(i), Transition: true})
		}
	}

	masterDir := filepath.Join(p.workDir, "master")
	tl, tlWarnings, err := timeline.Compile(chunks, cfg.FPS, masterDir)
	if err != nil {
		return nil, newFault(StageTimeline, RenderFailure, "сборка мастер-последовательности", err)
	}
	for _, w := range tlWarnings {
		p.warn(w)
	}
	fmt.Printf("[*] Таймлайн: %d кадров, %.2fs\n", tl.TotalFrames, tl.TotalDuration)

	// 4. Мастер-аудио
	audioStart := time.Now()
	audioPath := p.assembleAudio(tl)
	audioTime := time.Since(audioStart)

	// 5. Мультиплексирование
	muxStart := time.Now()
	fmt.Println("[*] Сборка финального видео...")
	muxRes, muxErr := mux.Mux(mux.Options{
		FramesDir:  masterDir,
		AudioPath:  audioPath,
		OutputPath: cfg.OutputVideo,
		FPS:        cfg.FPS,
		Encoder:    cfg.VideoEncoder,
		Quality:    cfg.Quality,
	})
	muxTime := time.Since(muxStart)

	result := &Result{
		AudioPath:     audioPath,
		FramesDir:     masterDir,
		TotalDuration: tl.TotalDuration,
		TotalFrames:   tl.TotalFrames,
	}

	if muxErr != nil {
		// Промежуточные артефакты сохраняются, чтобы пересобрать только mux
		result.Degraded = true
		result.Warnings = p.warnings
		return result, newFault(StageMux, EncodeFailure, "контейнер не собрался", muxErr)
	}

	result.VideoPath = muxRes.VideoPath
	result.Degraded = muxRes.Degraded
	for _, w := range muxRes.Warnings {
		p.warn(w)
	}
	result.Warnings = p.warnings

	p.cleanup(result)

	if cfg.ShowStats {
		p.printStats(startTime, renderTime, transTime, audioTime, muxTime, tl.TotalFrames)
	}

	return result, nil
}

// measureNarrations probes narration files the script did not carry a
// measured duration for. A failed probe keeps the requested duration.
func (p *Pipeline) measureNarrations() {
	for i := range p.Script.Segments {
		seg := &p.Script.Segments[i]
		if seg.Narration == "" || seg.NarrationDuration > 0 {
			continue
		}
		dur, err := system.GetAudioDuration(seg.Narration)
		if err != nil {
			p.warn(newFault(StageAudio, MissingAsset,
				fmt.Sprintf("сегмент %d: не удалось измерить озвучку %s", seg.ID, seg.Narration), err).Error())
			continue
		}
		seg.NarrationDuration = dur
	}
}

// assembleAudio builds the master track and writes it as WAV. Returns the
// empty string when the track could not be written: the muxer then falls
// back to a video-only result.
func (p *Pipeline) assembleAudio(tl *timeline.Timeline) string {
	cfg := p.Config
	assembler := audiotrack.NewAssembler(audiotrack.NewFFmpegLoader())
	if cfg.SampleRate > 0 {
		assembler.SampleRate = cfg.SampleRate
	}

	fmt.Printf("[*] Озвучка: %d из %d сегментов\n", len(tl.AudioEntries()), len(tl.Entries))
	master, audioWarnings := assembler.Assemble(tl.Entries, tl.TotalDuration)
	for _, w := range audioWarnings {
		p.warn(w)
	}

	if p.Script.Music != "" {
		music, err := assembler.Loader.Load(p.Script.Music)
		if err != nil {
			p.warn(fmt.Sprintf("фоновая музыка %s пропущена: %v", p.Script.Music, err))
		} else {
			assembler.MixMusic(master, music, 0.2)
		}
	}

	audioPath := filepath.Join(p.workDir, "master.wav")
	if err := audiotrack.WriteWAV(audioPath, master, assembler.SampleRate); err != nil {
		p.warn(fmt.Sprintf("мастер-аудио не записалось, видео будет без звука: %v", err))
		return ""
	}

	// Контроль рассинхрона по записанному файлу: предупреждение, не фатальная
	// ошибка. Замер буфера остается запасным вариантом без ffprobe.
	audioDur := float64(len(master)) / float64(assembler.SampleRate)
	if measured, err := system.GetAudioDuration(audioPath); err == nil {
		audioDur = measured
	}
	videoDur := float64(tl.TotalFrames) / float64(cfg.FPS)
	if w := syncDriftWarning(audioDur, videoDur); w != "" {
		p.warn(w)
	}
	fmt.Printf("[*] Мастер-аудио: %.2fs\n", audioDur)
	return audioPath
}

// syncDriftWarning compares the total durations of the two streams against
// the 0.5s tolerance. An empty result means the streams are in sync.
func syncDriftWarning(audioDur, videoDur float64) string {
	drift := math.Abs(audioDur - videoDur)
	if drift <= 0.5 {
		return ""
	}
	return newFault(StageAudio, SyncDrift,
		fmt.Sprintf("аудио %.2fs против видео %.2fs (дрейф %.2fs)", audioDur, videoDur, drift), nil).Error()
}

// cleanup removes the working directory after a fully successful run and
// blanks the artifact paths so the caller never sees deleted locations.
// Degraded results keep their artifacts for manual assembly.
func (p *Pipeline) cleanup(result *Result) {
	if p.Config.KeepArtifacts || result.Degraded {
		return
	}
	os.RemoveAll(p.workDir)
	result.FramesDir = ""
	result.AudioPath = ""
}

func (p *Pipeline) segDir(i int) string {
	return filepath.Join(p.workDir, fmt.Sprintf("seg_%03d", i+1))
}

func (p *Pipeline) transDir(i int) string {
	return filepath.Join(p.workDir, fmt.Sprintf("trans_%03d_%03d", i+1, i+2))
}

func (p *Pipeline) printStats(start time.Time, render, trans, audio, muxDur time.Duration, frames int) {
	totalTime := time.Since(start)
	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Segments (CPU): %.2fs\n"+
			"Transitions: %.2fs\n"+
			"Audio: %.2fs\n"+
			"Mux: %.2fs\n"+
			"Frames: %d (%.2f fps effective)\n"+
			"----------------------------\n",
		p.Config.BuildVersion, totalTime.Seconds(), render.Seconds(), trans.Seconds(),
		audio.Seconds(), muxDur.Seconds(), frames, float64(frames)/totalTime.Seconds(),
	)
	fmt.Print(report)

	logEntry := fmt.Sprintf("[%s] Build: %s | Script: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Mux: %.2fs\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.ScriptPath),
		frames,
		totalTime.Seconds(),
		render.Seconds(),
		muxDur.Seconds(),
	)

	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
	}
}
