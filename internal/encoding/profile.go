package encoding

import (
	"fmt"
	"strconv"
)

// Profile describes one rung of the encoding ladder.
type Profile struct {
	Name         string
	Muxer        string
	VideoEncoder string
	AudioEncoder string
	Extension    string
	MIMEType     string
}

var profiles = map[string]Profile{
	"webm-vp9": {
		Name:         "webm-vp9",
		Muxer:        "webm",
		VideoEncoder: "libvpx-vp9",
		AudioEncoder: "libopus",
		Extension:    "webm",
		MIMEType:     "video/webm;codecs=vp9,opus",
	},
	"webm-vp8": {
		Name:         "webm-vp8",
		Muxer:        "webm",
		VideoEncoder: "libvpx",
		AudioEncoder: "libopus",
		Extension:    "webm",
		MIMEType:     "video/webm;codecs=vp8,opus",
	},
	"mp4-h264": {
		Name:         "mp4-h264",
		Muxer:        "mp4",
		VideoEncoder: "libx264",
		AudioEncoder: "aac",
		Extension:    "mp4",
		MIMEType:     "video/mp4",
	},
}

// LookupProfile returns the named profile.
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ContainerType returns the MIME type without codec parameters.
func (p Profile) ContainerType() string {
	if p.Extension == "mp4" {
		return "video/mp4"
	}
	return "video/webm"
}

// outputArgs returns codec and muxer flags for the live pipe.
func (p Profile) outputArgs(spec Spec) []string {
	vb := strconv.Itoa(spec.VideoBitrateKbps) + "k"
	ab := strconv.Itoa(spec.AudioBitrateKbps) + "k"
	gop := strconv.Itoa(max(spec.FPS, 1))
	args := []string{"-c:v", p.VideoEncoder}
	switch p.VideoEncoder {
	case "libvpx-vp9":
		args = append(args, "-b:v", vb, "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1", "-g", gop)
	case "libvpx":
		args = append(args, "-b:v", vb, "-deadline", "realtime", "-cpu-used", "8", "-g", gop)
	case "libx264":
		args = append(args, "-b:v", vb, "-preset", "veryfast", "-tune", "zerolatency", "-g", gop)
	}
	args = append(args, "-pix_fmt", "yuv420p", "-c:a", p.AudioEncoder, "-b:a", ab)
	switch p.Muxer {
	case "webm":
		flushMS := max(int(spec.FlushInterval.Milliseconds()), 1)
		args = append(args, "-cluster_time_limit", strconv.Itoa(flushMS), "-f", "webm")
	case "mp4":
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof", "-f", "mp4")
	default:
		args = append(args, "-f", p.Muxer)
	}
	return append(args, "pipe:1")
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (%s/%s in %s)", p.Name, p.VideoEncoder, p.AudioEncoder, p.Muxer)
}
