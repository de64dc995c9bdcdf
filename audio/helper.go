package audio

import "github.com/chewxy/math32"

// AdjustChannels converts interleaved audio with iChs channels into oChs
// channels. Output channel c takes input channel c modulo iChs, so mono is
// duplicated onto every output channel and surplus input channels are
// dropped.
func AdjustChannels(iChs, oChs int, audioFrames []float32) []float32 {
	if iChs == oChs || iChs < 1 || oChs < 1 {
		return audioFrames
	}

	frames := len(audioFrames) / iChs
	res := make([]float32, 0, frames*oChs)
	for i := 0; i < frames; i++ {
		frame := audioFrames[i*iChs : (i+1)*iChs]
		for c := 0; c < oChs; c++ {
			res = append(res, frame[c%iChs])
		}
	}
	return res
}

// AdjustVolume scales the samples in place.
func AdjustVolume(volume float32, audioFrames []float32) {
	for i := 0; i < len(audioFrames); i++ {
		audioFrames[i] *= volume
	}
}

// MixInto adds src scaled by volume to dst. Both must hold the same number
// of samples; extra samples of the longer one are ignored.
func MixInto(dst, src []float32, volume float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += src[i] * volume
	}
}

// Clip limits all samples to [-1, 1].
func Clip(audioFrames []float32) {
	for i, s := range audioFrames {
		audioFrames[i] = math32.Max(-1, math32.Min(1, s))
	}
}

// RMS calculates the root mean square over all samples. It returns 0 for
// an empty buffer.
func RMS(data []float32) float32 {
	if len(data) == 0 {
		return 0
	}
	var sum float32
	for _, el := range data {
		sum += el * el
	}
	return math32.Sqrt(sum / float32(len(data)))
}
