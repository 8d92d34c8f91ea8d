package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Asset type names, matching what clips store in AssetType.
const (
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeImage = "image"
)

// ProbeResult is everything a probe learns about one media file.
type ProbeResult struct {
	Type       string
	DurationMs int64
	Width      int
	Height     int
	Title      string
	Artist     string
}

// Prober inspects media files for the metadata the editor needs: kind,
// playable duration and native dimensions.
type Prober struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewProber creates a media prober limited to the given file extensions.
func NewProber(supportedFormats []string) *Prober {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Prober{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// Probe extracts metadata from a media file.
func (p *Prober) Probe(filePath string) (ProbeResult, error) {
	startTime := time.Now()

	kind := TypeFromPath(filePath)
	if kind == "" {
		return ProbeResult{}, fmt.Errorf("unsupported format: %s", filepath.Ext(filePath))
	}

	var (
		result ProbeResult
		err    error
	)
	switch kind {
	case TypeVideo:
		result, err = p.probeVideo(filePath)
	case TypeAudio:
		result, err = p.probeAudio(filePath)
	case TypeImage:
		result, err = p.probeImage(filePath)
	}
	if err != nil {
		return ProbeResult{}, err
	}

	p.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"type":           result.Type,
		"durationMs":     result.DurationMs,
		"processingTime": time.Since(startTime),
	}).Debug("Probed media file")
	return result, nil
}

// probeAudio resolves an audio file's duration by format, plus title and
// artist tags where present.
func (p *Prober) probeAudio(filePath string) (ProbeResult, error) {
	result := ProbeResult{Type: TypeAudio}

	var err error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		result.DurationMs, err = p.durationMP3(filePath)
	case ".flac":
		result.DurationMs, err = p.durationFLAC(filePath)
	case ".wav":
		result.DurationMs, err = p.durationWAV(filePath)
	case ".m4a":
		result.DurationMs, _, _, err = p.scanMP4(filePath)
	default:
		err = fmt.Errorf("unsupported audio format: %s", filepath.Ext(filePath))
	}
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate audio duration, setting to 0")
		result.DurationMs = 0
	}

	file, err := os.Open(filePath)
	if err != nil {
		return ProbeResult{}, err
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		// No usable tags; fall back to the filename.
		filename := filepath.Base(filePath)
		result.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
		return result, nil
	}
	result.Title = metadata.Title()
	if result.Title == "" {
		result.Title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	result.Artist = metadata.Artist()
	return result, nil
}

// probeVideo reads duration and picture dimensions from an mp4/mov
// container via a manual atom scan.
func (p *Prober) probeVideo(filePath string) (ProbeResult, error) {
	durationMs, width, height, err := p.scanMP4(filePath)
	if err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{
		Type:       TypeVideo,
		DurationMs: durationMs,
		Width:      width,
		Height:     height,
	}, nil
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func (p *Prober) durationMP3(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return p.estimateFromFileSize(path, 192000) // assume 192 kbps = 192000 bps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return total.Milliseconds(), nil
}

// FLAC duration via STREAMINFO metadata block
func (p *Prober) durationFLAC(path string) (int64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		return int64(si.NSamples) * 1000 / int64(si.SampleRate), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration using go-audio/wav to read header
func (p *Prober) durationWAV(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	// Approximate using file size; full sample count may require decoding all samples.
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	return sampleFrames * 1000 / int64(dec.SampleRate), nil
}

// scanMP4 walks an MP4/MOV container for the 'mvhd' atom (timescale and
// duration) and the first video track's 'tkhd' atom (display width and
// height). Lightweight manual atom scan to avoid pulling a large dep.
// Best-effort.
func (p *Prober) scanMP4(path string) (durationMs int64, width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, 0, 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, 0, 0, fmt.Errorf("invalid atom size")
		}
		if atom != "moov" {
			// skip rest of atom
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, 0, 0, err
			}
			continue
		}

		limit := int64(size) - 8
		haveDuration := false
		for read := int64(0); read < limit; {
			subHead := make([]byte, 8)
			if _, err := io.ReadFull(f, subHead); err != nil {
				return 0, 0, 0, err
			}
			subSize := binary.BigEndian.Uint32(subHead[0:4])
			subAtom := string(subHead[4:8])
			if subSize < 8 {
				return 0, 0, 0, fmt.Errorf("invalid sub-atom size")
			}

			switch subAtom {
			case "mvhd":
				body := make([]byte, subSize-8)
				if _, err := io.ReadFull(f, body); err != nil {
					return 0, 0, 0, err
				}
				durationMs, err = parseMvhd(body)
				if err != nil {
					return 0, 0, 0, err
				}
				haveDuration = true
			case "trak":
				if width == 0 && height == 0 {
					body := make([]byte, subSize-8)
					if _, err := io.ReadFull(f, body); err != nil {
						return 0, 0, 0, err
					}
					width, height = trakDimensions(body)
				} else if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
					return 0, 0, 0, err
				}
			default:
				if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
					return 0, 0, 0, err
				}
			}
			read += int64(subSize)
		}
		if !haveDuration {
			return 0, 0, 0, fmt.Errorf("mvhd atom not found")
		}
		return durationMs, width, height, nil
	}
}

// parseMvhd reads timescale and duration from an mvhd atom body.
func parseMvhd(body []byte) (int64, error) {
	if len(body) < 1 {
		return 0, fmt.Errorf("truncated mvhd atom")
	}
	if body[0] == 1 { // 64-bit times
		if len(body) < 32 {
			return 0, fmt.Errorf("truncated mvhd atom")
		}
		timescale := binary.BigEndian.Uint32(body[20:24])
		durUnits := binary.BigEndian.Uint64(body[24:32])
		if timescale == 0 {
			return 0, fmt.Errorf("invalid timescale")
		}
		return int64(durUnits) * 1000 / int64(timescale), nil
	}
	if len(body) < 20 {
		return 0, fmt.Errorf("truncated mvhd atom")
	}
	timescale := binary.BigEndian.Uint32(body[12:16])
	durUnits := binary.BigEndian.Uint32(body[16:20])
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}
	return int64(durUnits) * 1000 / int64(timescale), nil
}

// trakDimensions scans a trak atom body for tkhd and returns the track's
// display width and height. Audio tracks report zero dimensions, so the
// caller keeps scanning tracks until a nonzero pair shows up.
func trakDimensions(body []byte) (int, int) {
	for off := 0; off+8 <= len(body); {
		size := int(binary.BigEndian.Uint32(body[off : off+4]))
		atom := string(body[off+4 : off+8])
		if size < 8 || off+size > len(body) {
			return 0, 0
		}
		if atom == "tkhd" {
			b := body[off+8 : off+size]
			if len(b) < 1 {
				return 0, 0
			}
			// Fixed offsets per version: flags, times, track id,
			// duration, layer/group/volume and the transform matrix
			// precede the 16.16 fixed-point width and height.
			var wOff int
			if b[0] == 1 {
				wOff = 88
			} else {
				wOff = 76
			}
			if len(b) < wOff+8 {
				return 0, 0
			}
			w := int(binary.BigEndian.Uint32(b[wOff:wOff+4]) >> 16)
			h := int(binary.BigEndian.Uint32(b[wOff+4:wOff+8]) >> 16)
			return w, h
		}
		off += size
	}
	return 0, 0
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (p *Prober) estimateFromFileSize(path string, bitrate int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return st.Size() * 8 * 1000 / int64(bitrate), nil
}

// probeImage reads dimensions from png/jpeg/gif headers.
func (p *Prober) probeImage(filePath string) (ProbeResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return ProbeResult{}, err
	}
	defer f.Close()

	head := make([]byte, 26)
	if _, err := io.ReadFull(f, head); err != nil {
		return ProbeResult{}, fmt.Errorf("image header too short: %w", err)
	}

	result := ProbeResult{Type: TypeImage}
	switch {
	case head[0] == 0x89 && head[1] == 0x50 && head[2] == 0x4E && head[3] == 0x47:
		// PNG: IHDR width/height right after the 8-byte signature and chunk header.
		result.Width = int(binary.BigEndian.Uint32(head[16:20]))
		result.Height = int(binary.BigEndian.Uint32(head[20:24]))
	case head[0] == 0x47 && head[1] == 0x49 && head[2] == 0x46:
		// GIF: logical screen descriptor, little-endian.
		result.Width = int(binary.LittleEndian.Uint16(head[6:8]))
		result.Height = int(binary.LittleEndian.Uint16(head[8:10]))
	case head[0] == 0xFF && head[1] == 0xD8:
		w, h, err := jpegDimensions(f)
		if err != nil {
			return ProbeResult{}, err
		}
		result.Width, result.Height = w, h
	default:
		return ProbeResult{}, fmt.Errorf("unrecognized image format")
	}
	return result, nil
}

// jpegDimensions walks JPEG markers until a start-of-frame segment.
func jpegDimensions(f *os.File) (int, int, error) {
	if _, err := f.Seek(2, io.SeekStart); err != nil {
		return 0, 0, err
	}
	buf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(f, buf[:2]); err != nil {
			return 0, 0, err
		}
		if buf[0] != 0xFF {
			return 0, 0, fmt.Errorf("invalid jpeg marker")
		}
		marker := buf[1]
		if _, err := io.ReadFull(f, buf[:2]); err != nil {
			return 0, 0, err
		}
		segLen := int64(binary.BigEndian.Uint16(buf[:2]))
		// SOF0..SOF15 minus DHT/JPG/DAC carry frame dimensions.
		if marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xC8 && marker != 0xCC {
			seg := make([]byte, 5)
			if _, err := io.ReadFull(f, seg); err != nil {
				return 0, 0, err
			}
			h := int(binary.BigEndian.Uint16(seg[1:3]))
			w := int(binary.BigEndian.Uint16(seg[3:5]))
			return w, h, nil
		}
		if _, err := f.Seek(segLen-2, io.SeekCurrent); err != nil {
			return 0, 0, err
		}
	}
}

// TypeFromPath maps a file extension to an asset type, or "" when the
// extension is not media the editor understands.
func TypeFromPath(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4", ".mov", ".m4v":
		return TypeVideo
	case ".mp3", ".flac", ".wav", ".m4a":
		return TypeAudio
	case ".png", ".jpg", ".jpeg", ".gif":
		return TypeImage
	default:
		return ""
	}
}

// IsSupported checks if a file is a supported media format
func (p *Prober) IsSupported(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range p.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type for a media file
func (p *Prober) ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
