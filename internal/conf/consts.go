// conf/consts.go hard coded constants
package conf

const (
	SampleRate  = 16000 // Canonical sample rate of waveforms fed to the detector
	BitDepth    = 16    // Bit depth used when exporting waveforms
	NumChannels = 1     // Detector input is mono

	// Reference detector parameters
	OuterWindowSeconds = 6.0 // Stage 1 analysis window
	InnerStepSeconds   = 0.3 // Stage 2 inner chunk length
	Stage1Frames       = 157 // Time frames the Stage 1 model expects
	MelBins            = 128
	FFTSize            = 2048
	HopLength          = 512
	TopDB              = 80.0

	AppName         = "capuchin-go"
	ConfigFileName  = "config"
	EnvPrefix       = "CAPUCHIN"
	DefaultModelDir = "model"
)
