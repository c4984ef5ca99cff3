package tags

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/llehouerou/go-m4a"
	"go.senan.xyz/taglib"
)

var (
	// errNoStreamInfo marks formats whose properties only TagLib can read.
	errNoStreamInfo = errors.New("no stream information without TagLib")
	// errEmptyStream is TagLib finding no audio stream in the file.
	errEmptyStream = errors.New("no audio stream found")
)

// ReadAudioInfo reads audio stream properties (duration, codec, bitrate,
// sample rate, bit depth, channels) without decoding audio.
//
// TagLib provides the common properties for every format; container-specific
// readers refine the codec and bit depth and stand in when TagLib fails.
func ReadAudioInfo(path string) (*AudioInfo, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsMusicFile(path) {
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}

	info := AudioInfo{}
	props, propsErr := taglib.ReadProperties(path)
	if propsErr == nil && props.Length == 0 && props.SampleRate == 0 {
		// TagLib reports garbage input as an empty stream, not an error
		propsErr = errEmptyStream
	}
	if propsErr == nil {
		info.Duration = props.Length
		info.Bitrate = int(props.Bitrate)
		info.SampleRate = int(props.SampleRate)
		info.Channels = int(props.Channels)
	}

	var specific AudioInfo
	var specificErr error
	switch ext {
	case ExtMP3:
		specific, specificErr = AudioInfo{Codec: CodecMP3}, errNoStreamInfo
	case ExtFLAC:
		specific, specificErr = readFLACAudioInfo(path)
	case ExtM4A, ExtM4B, ExtMP4, ExtALAC:
		specific, specificErr = readM4AAudioInfo(path)
	case ExtAAC:
		specific, specificErr = AudioInfo{Codec: CodecAAC}, errNoStreamInfo
	case ExtOPUS, ExtOGG, ExtOGA:
		specific, specificErr = readOggAudioInfo(path)
	case ExtWAV:
		specific, specificErr = readWAVAudioInfo(path)
	case ExtAIF, ExtAIFF:
		specific, specificErr = readAIFFAudioInfo(path)
	}

	if propsErr != nil && specificErr != nil {
		return nil, fmt.Errorf("read audio properties: %w", errors.Join(propsErr, specificErr))
	}

	mergeAudioInfo(&info, specific)
	if info.Duration == 0 && info.SampleRate == 0 {
		return nil, fmt.Errorf("read audio properties: %w", errors.Join(propsErr, specificErr, errEmptyStream))
	}

	if info.Codec == "" {
		info.Codec = codecFromExt(ext)
	}
	if info.Bitrate == 0 && info.Duration > 0 {
		if fi, err := os.Stat(path); err == nil {
			info.Bitrate = int(float64(fi.Size()) * 8 / info.Duration.Seconds() / 1000)
		}
	}
	if !IsLossless(info.Codec) {
		info.BitDepth = 0
	}

	return &info, nil
}

// mergeAudioInfo fills the zero fields of dst from src. Codec and bit depth
// from src always win since TagLib does not report them.
func mergeAudioInfo(dst *AudioInfo, src AudioInfo) {
	if src.Codec != "" {
		dst.Codec = src.Codec
	}
	if src.BitDepth != 0 {
		dst.BitDepth = src.BitDepth
	}
	if dst.Duration == 0 {
		dst.Duration = src.Duration
	}
	if dst.SampleRate == 0 {
		dst.SampleRate = src.SampleRate
	}
	if dst.Channels == 0 {
		dst.Channels = src.Channels
	}
	if dst.Bitrate == 0 {
		dst.Bitrate = src.Bitrate
	}
}

func codecFromExt(ext string) string {
	switch ext {
	case ExtMP3:
		return CodecMP3
	case ExtFLAC:
		return CodecFLAC
	case ExtOPUS:
		return CodecOpus
	case ExtOGG, ExtOGA:
		return CodecVorbis
	case ExtAAC:
		return CodecAAC
	case ExtALAC:
		return CodecALAC
	case ExtWAV:
		return CodecWAV
	case ExtAIF, ExtAIFF:
		return CodecAIFF
	}
	return CodecM4A
}

func samplesToDuration(samples int64, sampleRate int) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// readFLACAudioInfo extracts audio info from FLAC streaminfo metadata.
func readFLACAudioInfo(path string) (AudioInfo, error) {
	f, err := parseFLAC(path)
	if err != nil {
		return AudioInfo{}, err
	}
	info, ok := flacStreamInfo(f)
	if !ok {
		return AudioInfo{}, errors.New("flac: missing STREAMINFO block")
	}
	return info, nil
}

// readM4AAudioInfo extracts audio info from an M4A/MP4 file.
func readM4AAudioInfo(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	container, err := m4a.Open(f)
	if err != nil {
		return AudioInfo{}, err
	}

	info := AudioInfo{
		Duration:   container.Duration(),
		SampleRate: int(container.SampleRate()),
	}
	switch container.Codec() {
	case m4a.CodecAAC:
		info.Codec = CodecAAC
	case m4a.CodecALAC:
		info.Codec = CodecALAC
		info.BitDepth = int(container.SampleSize())
		if info.BitDepth == 0 {
			info.BitDepth = 16
		}
	case m4a.CodecUnknown:
		info.Codec = CodecM4A
	}
	return info, nil
}

// readOggAudioInfo identifies the codec of an Ogg stream from its first
// packet and, for Opus, derives the duration from the last granule position.
func readOggAudioInfo(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	head := make([]byte, 64)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return AudioInfo{}, err
	}
	head = head[:n]
	if !bytes.HasPrefix(head, []byte("OggS")) {
		return AudioInfo{}, errors.New("ogg: missing page header")
	}

	switch {
	case bytes.Contains(head, []byte("OpusHead")):
		// Opus always decodes at 48kHz
		const opusSampleRate = 48000
		duration, err := getOggDuration(f, opusSampleRate)
		if err != nil {
			return AudioInfo{Codec: CodecOpus, SampleRate: opusSampleRate}, nil //nolint:nilerr // duration is optional here
		}
		return AudioInfo{Codec: CodecOpus, SampleRate: opusSampleRate, Duration: duration}, nil
	case bytes.Contains(head, []byte("\x01vorbis")):
		return AudioInfo{Codec: CodecVorbis}, nil
	case bytes.Contains(head, []byte("\x7fFLAC")):
		return AudioInfo{Codec: CodecFLAC}, nil
	}
	return AudioInfo{}, errors.New("ogg: unknown codec")
}

// getOggDuration calculates duration from the last OGG granule position.
func getOggDuration(f *os.File, sampleRate int) (time.Duration, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	// Read the last 64KB to find the last OGG page
	searchSize := min(int64(65536), fi.Size())
	if _, err := f.Seek(-searchSize, io.SeekEnd); err != nil {
		return 0, err
	}

	buf := make([]byte, searchSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	buf = buf[:n]

	// Search backwards for OggS magic; granule position is at offset 6
	for i := len(buf) - 27; i >= 0; i-- {
		if !bytes.Equal(buf[i:i+4], []byte("OggS")) {
			continue
		}
		granule := int64(binary.LittleEndian.Uint64(buf[i+6 : i+14]))
		if granule > 0 {
			return samplesToDuration(granule, sampleRate), nil
		}
		break
	}

	return 0, errors.New("could not determine OGG duration")
}

// readWAVAudioInfo reads the fmt chunk of a RIFF/WAVE file.
func readWAVAudioInfo(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return AudioInfo{}, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return AudioInfo{}, errors.New("wav: not a RIFF/WAVE file")
	}

	info := AudioInfo{Codec: CodecWAV}
	var byteRate uint32
	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunk); err != nil {
			break
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		switch id {
		case "fmt ":
			body := make([]byte, min(size, 16))
			if _, err := io.ReadFull(f, body); err != nil || len(body) < 16 {
				return AudioInfo{}, errors.New("wav: short fmt chunk")
			}
			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			byteRate = binary.LittleEndian.Uint32(body[8:12])
			info.BitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
			if _, err := f.Seek(size-int64(len(body))+size%2, io.SeekCurrent); err != nil {
				return info, nil //nolint:nilerr // fmt already decoded
			}
		case "data":
			if byteRate > 0 {
				info.Duration = time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
			}
			return info, nil
		default:
			if _, err := f.Seek(size+size%2, io.SeekCurrent); err != nil {
				return info, nil //nolint:nilerr // best effort
			}
		}
	}
	if info.SampleRate == 0 {
		return AudioInfo{}, errors.New("wav: missing fmt chunk")
	}
	return info, nil
}

// readAIFFAudioInfo reads the COMM chunk of an AIFF file.
func readAIFFAudioInfo(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return AudioInfo{}, err
	}
	if string(header[0:4]) != "FORM" || (string(header[8:12]) != "AIFF" && string(header[8:12]) != "AIFC") {
		return AudioInfo{}, errors.New("aiff: not a FORM/AIFF file")
	}

	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunk); err != nil {
			return AudioInfo{}, errors.New("aiff: missing COMM chunk")
		}
		size := int64(binary.BigEndian.Uint32(chunk[4:8]))
		if string(chunk[0:4]) != "COMM" {
			if _, err := f.Seek(size+size%2, io.SeekCurrent); err != nil {
				return AudioInfo{}, err
			}
			continue
		}
		body := make([]byte, 18)
		if _, err := io.ReadFull(f, body); err != nil {
			return AudioInfo{}, err
		}
		channels := int(binary.BigEndian.Uint16(body[0:2]))
		frames := int64(binary.BigEndian.Uint32(body[2:6]))
		bits := int(binary.BigEndian.Uint16(body[6:8]))
		rate := int(extendedToFloat(body[8:18]))

		info := AudioInfo{Codec: CodecAIFF, Channels: channels, BitDepth: bits, SampleRate: rate}
		if rate > 0 {
			info.Duration = samplesToDuration(frames, rate)
		}
		return info, nil
	}
}

// extendedToFloat decodes an 80-bit IEEE 754 extended float (AIFF sample rate).
func extendedToFloat(b []byte) float64 {
	exp := int(binary.BigEndian.Uint16(b[0:2]) & 0x7FFF)
	mantissa := binary.BigEndian.Uint64(b[2:10])
	if exp == 0 && mantissa == 0 {
		return 0
	}
	return float64(mantissa) * math.Pow(2, float64(exp-16383-63))
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != id3Magic {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// ID3v2 size is stored as a syncsafe integer in bytes 6-9
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
