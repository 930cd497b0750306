package probe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
)

type mp4Box struct {
	typ  string
	data []byte
}

// splitBoxes walks top-level ISO BMFF boxes.
func splitBoxes(data []byte) ([]mp4Box, error) {
	var boxes []mp4Box
	for off := 0; off < len(data); {
		if len(data)-off < 8 {
			return nil, fmt.Errorf("truncated box header at %d", off)
		}
		size := uint64(binary.BigEndian.Uint32(data[off:]))
		typ := string(data[off+4 : off+8])
		switch size {
		case 0:
			size = uint64(len(data) - off)
		case 1:
			if len(data)-off < 16 {
				return nil, fmt.Errorf("truncated large box %s at %d", typ, off)
			}
			size = binary.BigEndian.Uint64(data[off+8:])
		}
		if size < 8 || uint64(len(data)-off) < size {
			return nil, fmt.Errorf("box %s at %d overruns artifact", typ, off)
		}
		boxes = append(boxes, mp4Box{typ: typ, data: data[off : off+int(size)]})
		off += int(size)
	}
	return boxes, nil
}

type sampleSpan struct {
	first, end uint64
	count      int
	seen       bool
}

func inspectFMP4(data []byte) ([]Track, error) {
	boxes, err := splitBoxes(data)
	if err != nil {
		return nil, fmt.Errorf("parse mp4: %w", err)
	}
	var initBytes, partBytes []byte
	for _, b := range boxes {
		switch b.typ {
		case "ftyp", "moov":
			initBytes = append(initBytes, b.data...)
		case "moof", "mdat":
			partBytes = append(partBytes, b.data...)
		}
	}

	var init fmp4.Init
	if err := init.Unmarshal(bytes.NewReader(initBytes)); err != nil {
		return nil, fmt.Errorf("parse mp4 init: %w", err)
	}
	var parts fmp4.Parts
	if len(partBytes) > 0 {
		if err := parts.Unmarshal(partBytes); err != nil {
			return nil, fmt.Errorf("parse mp4 fragments: %w", err)
		}
	}

	spans := make(map[int]*sampleSpan)
	for _, part := range parts {
		for _, pt := range part.Tracks {
			s, ok := spans[pt.ID]
			if !ok {
				s = &sampleSpan{}
				spans[pt.ID] = s
			}
			end := pt.BaseTime
			for _, sample := range pt.Samples {
				end += uint64(sample.Duration)
			}
			if !s.seen || pt.BaseTime < s.first {
				s.first = pt.BaseTime
			}
			s.end = max(s.end, end)
			s.count += len(pt.Samples)
			s.seen = true
		}
	}

	tracks := make([]Track, 0, len(init.Tracks))
	for _, it := range init.Tracks {
		t := Track{ID: it.ID, Codec: mp4CodecName(it.Codec), Kind: "audio"}
		if it.Codec != nil && it.Codec.IsVideo() {
			t.Kind = "video"
		}
		if s, ok := spans[it.ID]; ok && it.TimeScale > 0 {
			t.Samples = s.count
			t.Duration = time.Duration((s.end - s.first) * uint64(time.Second) / uint64(it.TimeScale))
		}
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })
	return tracks, nil
}

func mp4CodecName(c mp4.Codec) string {
	switch c.(type) {
	case *mp4.CodecH264:
		return "h264"
	case *mp4.CodecH265:
		return "h265"
	case *mp4.CodecVP9:
		return "vp9"
	case *mp4.CodecAV1:
		return "av1"
	case *mp4.CodecOpus:
		return "opus"
	case *mp4.CodecMPEG4Audio:
		return "aac"
	case nil:
		return "unknown"
	default:
		return fmt.Sprintf("%T", c)
	}
}
