package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

// HeaderSize is the length of the canonical PCM RIFF/WAVE header.
const HeaderSize = 44

// EncodeWAV prefixes pcm with a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, format Format) []byte {
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	bits := format.BitsPerSample
	if bits <= 0 {
		bits = 16
	}
	blockAlign := channels * bits / 8

	out := make([]byte, HeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(format.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bits))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)
	return out
}

// ContainerInfo summarizes a decoded RIFF/WAVE container.
type ContainerInfo struct {
	Format   Format
	DataSize int
	Samples  int
	Duration time.Duration
}

// InspectContainer decodes data and reports its format and payload size.
// Containers without any samples are rejected.
func InspectContainer(data []byte) (ContainerInfo, error) {
	if len(data) < HeaderSize {
		return ContainerInfo{}, fmt.Errorf("container too short: %d bytes", len(data))
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return ContainerInfo{}, errors.New("not a valid RIFF/WAVE container")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("decode pcm: %w", err)
	}

	format := Format{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
	}
	dataSize := len(buf.Data) * format.BitsPerSample / 8
	return ContainerInfo{
		Format:   format,
		DataSize: dataSize,
		Samples:  len(buf.Data) / max(format.Channels, 1),
		Duration: format.Duration(dataSize),
	}, nil
}

// ContainerDuration reads the byte rate and data size straight from a
// canonical header. It returns zero for anything shorter than a header.
func ContainerDuration(data []byte) time.Duration {
	if len(data) < HeaderSize || string(data[0:4]) != "RIFF" {
		return 0
	}
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	size := binary.LittleEndian.Uint32(data[40:44])
	if byteRate == 0 {
		return 0
	}
	return time.Duration(int64(size) * int64(time.Second) / int64(byteRate))
}
