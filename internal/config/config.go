package config

type Config struct {
	ScriptPath    string
	OutputVideo   string
	WorkDir       string
	Width         int
	Height        int
	FPS           int
	Workers       int
	TransitionDur float64
	VideoEncoder  string
	Quality       int
	Preset        string
	SampleRate    int
	KeepArtifacts bool
	ShowStats     bool
	BuildVersion  string
}
