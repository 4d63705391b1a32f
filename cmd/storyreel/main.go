package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivlev/storyreel/internal/config"
	"github.com/ivlev/storyreel/internal/engine"
	"github.com/ivlev/storyreel/internal/script"
	"github.com/ivlev/storyreel/internal/source"
	"github.com/ivlev/storyreel/internal/system"
)

var buildVersion = "dev"

func main() {
	// .env не обязателен, но если есть — подхватываем (пути к ffmpeg и т.п.)
	_ = godotenv.Load()

	var (
		scriptPath string
		output     string
		preset     string
		width      int
		height     int
		fps        int
		workers    int
		transDur   float64
		quality    int
		keep       bool
		stats      bool
	)

	rootCmd := &cobra.Command{
		Use:           "storyreel",
		Short:         "Собирает короткое вертикальное видео из сегментов сценария",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			system.InitResourceLimits()

			dirs := []string{"input/scripts", "output"}
			for _, d := range dirs {
				os.MkdirAll(d, 0755)
			}

			if scriptPath == "" {
				latest, err := system.FindLatestScript("input/scripts")
				if err != nil {
					return fmt.Errorf("сценарий не задан: %v (положите YAML в input/scripts/)", err)
				}
				scriptPath = latest
				fmt.Printf("[*] Выбран сценарий: %s\n", scriptPath)
			}

			scr, err := script.ReadScript(scriptPath)
			if err != nil {
				return fmt.Errorf("ошибка чтения сценария: %w", err)
			}
			if err := scr.Validate(); err != nil {
				return fmt.Errorf("некорректный сценарий: %w", err)
			}

			explicit := cmd.Flags().Changed("width") || cmd.Flags().Changed("height")
			width, height = presetDimensions(preset, width, height, explicit)

			if output == "" {
				timestamp := time.Now().Format("2006-01-02_15-04-05")
				output = source.OutputName(scriptPath, "output", timestamp)
			}

			encoderName, _ := system.GetBestH264Encoder()
			if encoderName != "libx264" {
				fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoderName)
			}

			if quality == 0 {
				switch encoderName {
				case "h264_videotoolbox":
					quality = 75
				case "h264_nvenc":
					quality = 28
				default:
					quality = 23
				}
			}

			cfg := &config.Config{
				ScriptPath:    scriptPath,
				OutputVideo:   output,
				Width:         width,
				Height:        height,
				FPS:           fps,
				Workers:       workers,
				TransitionDur: transDur,
				VideoEncoder:  encoderName,
				Quality:       quality,
				Preset:        preset,
				KeepArtifacts: keep,
				ShowStats:     stats,
				BuildVersion:  buildVersion,
			}

			pipeline := engine.NewPipeline(cfg, scr)
			result, err := pipeline.Run(context.Background())
			if err != nil {
				if result != nil {
					// Артефакты целы: можно пересобрать только mux
					fmt.Printf("[!] Сборка не завершена. Кадры: %s", result.FramesDir)
					if result.AudioPath != "" {
						fmt.Printf(" | Аудио: %s", result.AudioPath)
					}
					fmt.Println()
				}
				return err
			}

			for _, w := range result.Warnings {
				fmt.Printf("[!] %s\n", w)
			}
			if result.Degraded {
				fmt.Printf("[+] Готово (деградация: без аудио): %s\n", result.VideoPath)
			} else {
				fmt.Printf("[+++] Успех! Результат: %s (%.2fs, %d кадров)\n",
					result.VideoPath, result.TotalDuration, result.TotalFrames)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Путь к YAML-сценарию (по умолчанию: самый свежий в input/scripts/)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Путь к видео (если пусто, генерируется в output/)")
	rootCmd.Flags().StringVar(&preset, "preset", "9:16", "Пресет формата: 9:16 (Shorts/TikTok), 9:16-preview, 16:9, 4:5")
	rootCmd.Flags().IntVar(&width, "width", 720, "Ширина")
	rootCmd.Flags().IntVar(&height, "height", 1280, "Высота")
	rootCmd.Flags().IntVar(&fps, "fps", 30, "FPS")
	rootCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Потоки рендеринга")
	rootCmd.Flags().Float64Var(&transDur, "transition", 1.0, "Длительность перехода (сек)")
	rootCmd.Flags().IntVar(&quality, "quality", 0, "Качество видео (0 - авто, x264: CRF, VideoToolbox: битрейт = Q*100кбит/с)")
	rootCmd.Flags().BoolVar(&keep, "keep-artifacts", false, "Не удалять промежуточные кадры и аудио")
	rootCmd.Flags().BoolVar(&stats, "stats", false, "Показать отчет о производительности")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("[-] Ошибка проекта: %v", err)
	}
}

// presetDimensions resolves the output resolution. Explicitly set
// --width/--height win over the preset; unknown presets keep the flags.
func presetDimensions(preset string, width, height int, explicit bool) (int, int) {
	if explicit {
		return width, height
	}
	switch preset {
	case "9:16":
		return 720, 1280
	case "9:16-preview":
		return 288, 512
	case "16:9":
		return 1280, 720
	case "4:5":
		return 1080, 1350
	}
	return width, height
}
