package probe

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

const defaultTimecodeScale = 1000000

type webmDocument struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment webm.Segment    `ebml:"Segment"`
}

type blockSpan struct {
	first, last int64
	count       int
}

func inspectWebM(data []byte) ([]Track, time.Duration, error) {
	var doc webmDocument
	if err := ebml.Unmarshal(bytes.NewReader(data), &doc, ebml.WithIgnoreUnknown(true)); err != nil {
		return nil, 0, fmt.Errorf("parse webm: %w", err)
	}
	scale := doc.Segment.Info.TimecodeScale
	if scale == 0 {
		scale = defaultTimecodeScale
	}

	spans := make(map[uint64]*blockSpan)
	note := func(track uint64, ts int64, frames int) {
		s, ok := spans[track]
		if !ok {
			s = &blockSpan{first: ts, last: ts}
			spans[track] = s
		}
		s.first = min(s.first, ts)
		s.last = max(s.last, ts)
		s.count += max(frames, 1)
	}
	for _, cluster := range doc.Segment.Cluster {
		base := int64(cluster.Timecode)
		for _, b := range cluster.SimpleBlock {
			note(b.TrackNumber, base+int64(b.Timecode), len(b.Data))
		}
		for _, g := range cluster.BlockGroup {
			note(g.Block.TrackNumber, base+int64(g.Block.Timecode), len(g.Block.Data))
		}
	}

	tracks := make([]Track, 0, len(doc.Segment.Tracks.TrackEntry))
	for _, entry := range doc.Segment.Tracks.TrackEntry {
		t := Track{
			ID:    int(entry.TrackNumber),
			Kind:  webmKind(entry.TrackType),
			Codec: webmCodec(entry.CodecID),
		}
		if s, ok := spans[entry.TrackNumber]; ok {
			t.Samples = s.count
			t.Duration = spanDuration(s, scale, time.Duration(entry.DefaultDuration))
		}
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })

	declared := time.Duration(doc.Segment.Info.Duration * float64(scale))
	return tracks, declared, nil
}

// spanDuration covers first to last block plus one frame, using the track's
// default duration or the mean block spacing for the final frame.
func spanDuration(s *blockSpan, scale uint64, frame time.Duration) time.Duration {
	covered := time.Duration((s.last - s.first) * int64(scale))
	if frame <= 0 && s.count > 1 {
		frame = covered / time.Duration(s.count-1)
	}
	return covered + frame
}

func webmKind(trackType uint64) string {
	switch trackType {
	case 1:
		return "video"
	case 2:
		return "audio"
	case 0x11:
		return "subtitle"
	default:
		return "other"
	}
}

func webmCodec(id string) string {
	id = strings.TrimPrefix(strings.TrimPrefix(id, "V_"), "A_")
	return strings.ToLower(id)
}
