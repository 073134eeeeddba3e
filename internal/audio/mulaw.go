package audio

// G.711 μ-law, the sample format Twilio Media Streams carries at 8 kHz mono.

const (
	// SilenceByte is the μ-law encoding of a zero sample, used to pad frames.
	SilenceByte byte = 0xFF

	muLawBias = 0x84
	muLawClip = 32635
)

// decodeTable maps every μ-law byte to its linear PCM16 value. Built once;
// decoding runs on every inbound sample of every active call.
var decodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		decodeTable[i] = decodeMuLaw(byte(i))
	}
}

// decodeMuLaw is the closed-form companding inverse; Decode serves the same
// values from the precomputed table.
func decodeMuLaw(b byte) int16 {
	b = ^b
	sign := int16(b & 0x80)
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	magnitude := ((int16(mantissa) << 3) + muLawBias) << exponent
	magnitude -= muLawBias
	if sign != 0 {
		return -magnitude
	}
	return magnitude
}

// Decode converts one μ-law wire sample to a linear PCM16 sample.
func Decode(b byte) int16 {
	return decodeTable[b]
}

// Encode converts one linear PCM16 sample to a μ-law wire sample. It is the
// algorithmic inverse of Decode: decode(encode(x)) stays within one
// quantization step of x.
func Encode(sample int16) byte {
	var sign byte
	s := int(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := 7
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F

	return ^(sign | byte(exponent)<<4 | mantissa)
}

// DecodePCM16 converts a μ-law payload to 16-bit little-endian linear PCM.
func DecodePCM16(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}
	out := make([]byte, len(payload)*2)
	for i, b := range payload {
		sample := decodeTable[b]
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

// EncodePCM16 converts 16-bit little-endian linear PCM to a μ-law payload.
// An odd trailing byte is ignored.
func EncodePCM16(pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = Encode(sample)
	}
	return out
}
