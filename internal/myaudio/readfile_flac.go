package myaudio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tphakala/flac"
)

func readFLACInfo(file *os.File) (AudioInfo, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return AudioInfo{}, err
	}

	return AudioInfo{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}, nil
}

// readFLAC decodes a whole FLAC file into mono float32 samples.
func readFLAC(file *os.File) (samples []float32, sampleRate int, err error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return nil, 0, err
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, 0, err
	}
	if decoder.NChannels < 1 {
		return nil, 0, fmt.Errorf("unsupported number of channels: %d", decoder.NChannels)
	}

	bytesPerSample := decoder.BitsPerSample / 8
	channels := decoder.NChannels

	interleaved := make([]float32, 0, int(decoder.TotalSamples)*channels)
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, fmt.Errorf("error decoding FLAC frame: %w", err)
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			interleaved = append(interleaved, float32(decodePCMSample(frame[i:], decoder.BitsPerSample))/divisor)
		}
	}

	return downmix(interleaved, channels), decoder.SampleRate, nil
}

// decodePCMSample decodes one little-endian signed sample.
func decodePCMSample(b []byte, bitDepth int) int32 {
	switch bitDepth {
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		// sign-extend from 24 bits
		return (v << 8) >> 8
	case 32:
		return int32(binary.LittleEndian.Uint32(b))
	default:
		return 0
	}
}
