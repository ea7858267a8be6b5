package myaudio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavReadBufferSize is the number of interleaved samples decoded per PCMBuffer call
const wavReadBufferSize = 64 * 1024

func readWAVInfo(file *os.File) (AudioInfo, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return AudioInfo{}, errors.New("invalid WAV file format")
	}

	if err := checkWAVFormat(decoder); err != nil {
		return AudioInfo{}, err
	}

	// position at the data chunk so PCMLen reports its size
	if err := decoder.FwdToPCM(); err != nil {
		return AudioInfo{}, fmt.Errorf("error locating WAV data chunk: %w", err)
	}
	frameBytes := int64(decoder.BitDepth/8) * int64(decoder.NumChans)

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: int(decoder.PCMLen() / frameBytes),
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}

func checkWAVFormat(decoder *wav.Decoder) error {
	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}
	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return fmt.Errorf("unsupported number of channels: %d", decoder.NumChans)
	}
	if decoder.SampleRate == 0 {
		return errors.New("WAV header has zero sample rate")
	}
	return nil
}

// readWAV decodes a whole WAV file into mono float32 samples.
func readWAV(file *os.File) (samples []float32, sampleRate int, err error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("input is not a valid WAV audio file")
	}
	if err := checkWAVFormat(decoder); err != nil {
		return nil, 0, err
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, 0, err
	}

	channels := int(decoder.NumChans)
	buf := &audio.IntBuffer{
		Data:   make([]int, wavReadBufferSize*channels),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
	}

	var interleaved []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("error decoding WAV data: %w", err)
		}
		if n == 0 {
			break
		}
		for _, sample := range buf.Data[:n] {
			interleaved = append(interleaved, float32(sample)/divisor)
		}
	}

	return downmix(interleaved, channels), int(decoder.SampleRate), nil
}
