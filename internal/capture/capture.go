package capture

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"gocv.io/x/gocv"
)

// Source is a frame producer: a local camera index, a video file, or an
// RTSP/HTTP stream URL.
type Source struct {
	capture *gocv.VideoCapture
	label   string
}

// OpenDevice opens a local camera by index.
func OpenDevice(index int) (*Source, error) {
	vc, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d is not available", index)
	}
	return &Source{capture: vc, label: fmt.Sprintf("camera:%d", index)}, nil
}

// OpenURL opens a stream URL or a video file path. gocv dispatches on the
// argument, so RTSP, HTTP, and plain files all go through here.
func OpenURL(url string) (*Source, error) {
	vc, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %s: %w", url, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video source %s is not available", url)
	}
	return &Source{capture: vc, label: url}, nil
}

// Label identifies the source in logs.
func (s *Source) Label() string {
	return s.label
}

// Read grabs the next frame into dst. It returns false when the source is
// exhausted or the frame is empty.
func (s *Source) Read(dst *gocv.Mat) bool {
	if !s.capture.Read(dst) {
		return false
	}
	return !dst.Empty()
}

// Size reports the source frame dimensions.
func (s *Source) Size() (width, height int) {
	w := int(s.capture.Get(gocv.VideoCaptureFrameWidth))
	h := int(s.capture.Get(gocv.VideoCaptureFrameHeight))
	return w, h
}

// FPS reports the source frame rate, or 0 when unknown.
func (s *Source) FPS() float64 {
	return s.capture.Get(gocv.VideoCaptureFPS)
}

func (s *Source) Close() error {
	return s.capture.Close()
}

// Device is one enumerated local camera.
type Device struct {
	Index int    `json:"index"`
	Path  string `json:"path,omitempty"`
}

const maxProbeIndex = 5

// EnumerateDevices lists local cameras. On Linux /dev/video* nodes are
// listed directly; elsewhere indices 0..4 are probed by opening them.
func EnumerateDevices() []Device {
	if nodes, err := filepath.Glob("/dev/video*"); err == nil && len(nodes) > 0 {
		sort.Strings(nodes)
		devices := make([]Device, 0, len(nodes))
		for _, node := range nodes {
			idx, err := strconv.Atoi(node[len("/dev/video"):])
			if err != nil {
				continue
			}
			devices = append(devices, Device{Index: idx, Path: node})
		}
		return devices
	}

	var devices []Device
	for i := 0; i < maxProbeIndex; i++ {
		vc, err := gocv.VideoCaptureDevice(i)
		if err != nil {
			continue
		}
		if vc.IsOpened() {
			devices = append(devices, Device{Index: i})
		}
		vc.Close()
	}
	return devices
}
