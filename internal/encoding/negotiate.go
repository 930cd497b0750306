package encoding

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"

	"reelbooth/internal/services"
)

// Capabilities lists what an ffmpeg build can encode and mux.
type Capabilities struct {
	Encoders map[string]bool
	Muxers   map[string]bool
}

// Supports reports whether every component of p is available.
func (c Capabilities) Supports(p Profile) (bool, string) {
	switch {
	case !c.Encoders[p.VideoEncoder]:
		return false, "missing video encoder " + p.VideoEncoder
	case !c.Encoders[p.AudioEncoder]:
		return false, "missing audio encoder " + p.AudioEncoder
	case !c.Muxers[p.Muxer]:
		return false, "missing muxer " + p.Muxer
	default:
		return true, ""
	}
}

// Prober reports the local encoder capabilities.
type Prober interface {
	Capabilities(ctx context.Context) (Capabilities, error)
}

// FFmpegProber queries `ffmpeg -encoders` and `ffmpeg -muxers`.
type FFmpegProber struct {
	Binary string
}

func (p FFmpegProber) Capabilities(ctx context.Context) (Capabilities, error) {
	encoders, err := p.list(ctx, "-encoders")
	if err != nil {
		return Capabilities{}, err
	}
	muxers, err := p.list(ctx, "-muxers")
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{Encoders: encoders, Muxers: muxers}, nil
}

func (p FFmpegProber) list(ctx context.Context, flag string) (map[string]bool, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", flag).Output() //nolint:gosec
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "encoding", "ffmpeg "+flag, "Failed to query ffmpeg capabilities", err)
	}
	return parseCapabilityList(out), nil
}

// parseCapabilityList reads the table that follows the "--" separator line in
// ffmpeg's -encoders and -muxers listings.
func parseCapabilityList(out []byte) map[string]bool {
	names := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			if strings.HasPrefix(line, "--") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, name := range strings.Split(fields[1], ",") {
			names[name] = true
		}
	}
	return names
}

// FallbackProfile is the rung every ladder ends with; H.264 in MP4 is the
// most widely built ffmpeg configuration.
const FallbackProfile = "mp4-h264"

// withFallback returns ladder with FallbackProfile appended when missing.
func withFallback(ladder []string) []string {
	if slices.Contains(ladder, FallbackProfile) {
		return ladder
	}
	return append(slices.Clip(ladder), FallbackProfile)
}

// Negotiate returns the first profile in ladder supported by prober and the
// names that were tried. The ladder always ends with FallbackProfile, so a
// FatalEncodeError means the fallback failed too.
func Negotiate(ctx context.Context, prober Prober, ladder []string) (Profile, []string, error) {
	caps, err := prober.Capabilities(ctx)
	if err != nil {
		return Profile{}, nil, &services.FatalEncodeError{Err: err}
	}
	ladder = withFallback(ladder)
	tried := make([]string, 0, len(ladder))
	reasons := make([]string, 0, len(ladder))
	for _, name := range ladder {
		tried = append(tried, name)
		profile, ok := LookupProfile(name)
		if !ok {
			reasons = append(reasons, name+": unknown profile")
			continue
		}
		if ok, reason := caps.Supports(profile); !ok {
			reasons = append(reasons, name+": "+reason)
			continue
		}
		return profile, tried, nil
	}
	return Profile{}, tried, &services.FatalEncodeError{
		Tried: tried,
		Err:   errors.New(strings.Join(reasons, "; ")),
	}
}
