package detector

// Window is an outer analysis window. StartTime is the nominal start, k times
// the outer window duration; StartSample is that time converted to samples.
type Window struct {
	Index       int
	StartSample int
	EndSample   int
	StartTime   float64
}

// Len returns the window length in samples.
func (w Window) Len() int {
	return w.EndSample - w.StartSample
}

// Duration returns the window length in seconds.
func (w Window) Duration(sampleRate int) float64 {
	return float64(w.Len()) / float64(sampleRate)
}

// EndTime returns the start time plus the actual, possibly truncated, duration.
func (w Window) EndTime(sampleRate int) float64 {
	return w.StartTime + w.Duration(sampleRate)
}

// OuterWindows partitions a recording into non-overlapping windows of
// duration seconds. Windows advance by the nominal duration regardless of
// truncation, and the last window may be shorter. A recording shorter than
// one window yields exactly one window; an empty recording yields none.
func OuterWindows(totalSamples, sampleRate int, duration float64) []Window {
	if totalSamples <= 0 || sampleRate <= 0 || duration <= 0 {
		return nil
	}

	rate := float64(sampleRate)
	total := float64(totalSamples) / rate
	windowSamples := int(duration * rate)

	var windows []Window
	for k := 0; ; k++ {
		start := float64(k) * duration
		if start >= total {
			break
		}
		startSample := int(start * rate)
		windows = append(windows, Window{
			Index:       k,
			StartSample: startSample,
			EndSample:   min(startSample+windowSamples, totalSamples),
			StartTime:   start,
		})
	}
	return windows
}

// Chunk is an inner chunk with sample offsets relative to its outer window.
// Skip marks tail chunks shorter than half a step, which are not classified.
type Chunk struct {
	StartSample int
	EndSample   int
	Skip        bool
}

// Len returns the chunk length in samples.
func (c Chunk) Len() int {
	return c.EndSample - c.StartSample
}

// InnerChunks lays chunks of stepSamples over a window of length samples,
// advancing by hopSamples. hopSamples must be positive.
func InnerChunks(length, stepSamples, hopSamples int) []Chunk {
	if hopSamples <= 0 || stepSamples <= 0 {
		return nil
	}

	var chunks []Chunk
	for start := 0; start < length; start += hopSamples {
		c := Chunk{StartSample: start, EndSample: min(start+stepSamples, length)}
		c.Skip = 2*c.Len() < stepSamples
		chunks = append(chunks, c)
	}
	return chunks
}
