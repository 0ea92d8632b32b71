package workflow

import "encoding/binary"

// PCMFormat describes raw PCM audio as returned by the Gemini speech API.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultPCMFormat matches Gemini TTS output: 24 kHz mono 16-bit.
var DefaultPCMFormat = PCMFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

const wavHeaderSize = 44

// WAVContainer prefixes raw PCM data with a minimal RIFF/WAVE header so the
// stored artifact plays in browsers. The RIFF chunk size is len(pcm)+36 and
// the data chunk size is len(pcm) exactly.
func WAVContainer(pcm []byte, format PCMFormat) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))
	writeWAVHeader(out[:wavHeaderSize], len(pcm), format)
	copy(out[wavHeaderSize:], pcm)
	return out
}

func writeWAVHeader(header []byte, dataSize int, format PCMFormat) {
	le := binary.LittleEndian
	byteRate := format.SampleRate * format.Channels * format.BitsPerSample / 8
	blockAlign := format.Channels * format.BitsPerSample / 8

	copy(header[0:4], "RIFF")
	le.PutUint32(header[4:8], uint32(dataSize+wavHeaderSize-8))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	le.PutUint32(header[16:20], 16) // PCM fmt chunk size
	le.PutUint16(header[20:22], 1)  // PCM format tag
	le.PutUint16(header[22:24], uint16(format.Channels))
	le.PutUint32(header[24:28], uint32(format.SampleRate))
	le.PutUint32(header[28:32], uint32(byteRate))
	le.PutUint16(header[32:34], uint16(blockAlign))
	le.PutUint16(header[34:36], uint16(format.BitsPerSample))

	copy(header[36:40], "data")
	le.PutUint32(header[40:44], uint32(dataSize))
}
