package audio

import (
	"strconv"
	"strings"

	"reelbooth/internal/media/ffprobe"
)

// Selection is the chosen passthrough track.
type Selection struct {
	Stream ffprobe.Stream
	// Ordinal is the position among the file's audio streams; -1 when the
	// file has none.
	Ordinal int
	// Total is the number of audio streams in the file.
	Total int
}

// Found reports whether a track was selected.
func (s Selection) Found() bool { return s.Ordinal >= 0 }

// MapSpec returns the ffmpeg stream specifier for the selection.
func (s Selection) MapSpec() string {
	if !s.Found() {
		return ""
	}
	return "0:a:" + strconv.Itoa(s.Ordinal)
}

// Label returns a human-readable summary of the selected stream.
func (s Selection) Label() string {
	if !s.Found() {
		return ""
	}
	return formatStreamSummary(s.Stream)
}

// Select returns the track to mix into the recording. language is a
// prefix such as "en"; empty means no preference.
func Select(streams []ffprobe.Stream, language string) Selection {
	candidates := buildCandidates(streams, strings.ToLower(strings.TrimSpace(language)))
	if len(candidates) == 0 {
		return Selection{Ordinal: -1}
	}
	best := candidates[0]
	bestScore := score(best)
	for _, cand := range candidates[1:] {
		if s := score(cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	return Selection{Stream: best.stream, Ordinal: best.order, Total: len(candidates)}
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	title          string
	preferredLang  bool
	commentary     bool
	lossless       bool
	channels       int
	defaultFlagged bool
}

// commentaryPenalty outweighs every bonus combined, so a commentary or
// description track is only chosen when nothing else exists.
const commentaryPenalty = 10000

func score(cand candidate) float64 {
	s := 0.0
	if cand.defaultFlagged {
		s += 2000
	}
	if cand.preferredLang {
		s += 1000
	}
	if cand.commentary {
		s -= commentaryPenalty
	}
	switch {
	case cand.channels >= 6:
		s += 300
	case cand.channels >= 2:
		s += 200
	case cand.channels == 1:
		s += 100
	}
	if cand.lossless {
		s += 50
	}
	// Earlier tracks win ties.
	s -= float64(cand.order) * 0.1
	return s
}

func buildCandidates(streams []ffprobe.Stream, language string) []candidate {
	var result []candidate
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		title := normalizeTitle(stream.Tags)
		cand := candidate{
			stream:         stream,
			order:          len(result),
			title:          title,
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition["default"] == 1,
			lossless:       detectLossless(stream),
			commentary: stream.Disposition["comment"] == 1 ||
				stream.Disposition["visual_impaired"] == 1 ||
				strings.Contains(title, "commentary") ||
				strings.Contains(title, "description"),
		}
		if language != "" {
			cand.preferredLang = strings.HasPrefix(normalizeLanguage(stream.Tags), language)
		}
		result = append(result, cand)
	}
	return result
}

func normalizeLanguage(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "LANG"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func normalizeTitle(tags map[string]string) string {
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "5.1"):
		return 6
	case strings.HasPrefix(layout, "4.0"), layout == "quad":
		return 4
	}
	return 0
}

func detectLossless(stream ffprobe.Stream) bool {
	name := strings.ToLower(stream.CodecName)
	switch name {
	case "flac", "alac", "truehd", "mlp":
		return true
	}
	if strings.HasPrefix(name, "pcm_") {
		return true
	}
	return strings.Contains(strings.ToLower(stream.CodecLong), "lossless")
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := normalizeLanguage(stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if n := channelCount(stream); n > 0 {
		parts = append(parts, strconv.Itoa(n)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
