package capture

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Recording is the ordered output of one finished capture session
type Recording struct {
	Chunks [][]byte
	Format Format
}

// Bytes concatenates the chunks in the order they were received
func (r *Recording) Bytes() []byte {
	n := 0
	for _, c := range r.Chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range r.Chunks {
		out = append(out, c...)
	}
	return out
}

// Duration returns the length of the recorded audio
func (r *Recording) Duration() time.Duration {
	frame := r.Format.Channels * r.Format.BitsPerSample / 8
	if frame == 0 || r.Format.SampleRate == 0 {
		return 0
	}
	n := 0
	for _, c := range r.Chunks {
		n += len(c)
	}
	frames := n / frame
	return time.Duration(frames) * time.Second / time.Duration(r.Format.SampleRate)
}

// Filename is the multipart filename used when uploading the recording
func (r *Recording) Filename() string {
	return "recording.wav"
}

// ContentType is the MIME type of WAV()
func (r *Recording) ContentType() string {
	return "audio/wav"
}

// WAV frames the raw PCM in a canonical 44-byte RIFF header.
// An empty recording still yields a valid, zero-length WAV file.
func (r *Recording) WAV() []byte {
	pcm := r.Bytes()
	f := r.Format
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
