package devices

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes V4L2 nodes.
const DefaultSysfsRoot = "/sys/class/video4linux"

// Camera describes one V4L2 node.
type Camera struct {
	Device string
	Name   string
	// Index is the node index within its physical device; capture nodes
	// are usually index 0 while metadata nodes use higher indexes.
	Index   int
	Capture bool
}

// List enumerates V4L2 nodes under sysfsRoot, sorted by device path.
func List(sysfsRoot string) ([]Camera, error) {
	if sysfsRoot == "" {
		sysfsRoot = DefaultSysfsRoot
	}
	entries, err := os.ReadDir(sysfsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cameras := make([]Camera, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "video") {
			continue
		}
		device := "/dev/" + entry.Name()
		index := readInt(filepath.Join(sysfsRoot, entry.Name(), "index"))
		cameras = append(cameras, Camera{
			Device:  device,
			Name:    readName(sysfsRoot, device),
			Index:   index,
			Capture: index == 0,
		})
	}
	sort.Slice(cameras, func(i, j int) bool { return cameras[i].Device < cameras[j].Device })
	return cameras, nil
}

func readName(sysfsRoot, device string) string {
	data, err := os.ReadFile(filepath.Join(sysfsRoot, filepath.Base(device), "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return n
}
