package detector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ayusman/formcheck/internal/pose"
)

// The pose service reads length-prefixed (4 bytes big-endian) JPEG images
// on stdin and answers each with one JSON line on stdout.

// writeImage sends one encoded image to the service.
func writeImage(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// response is one line from the service. Landmarks is empty when no person
// was found.
type response struct {
	Landmarks []jsonLandmark `json:"landmarks"`
	Error     string         `json:"error,omitempty"`
}

type jsonLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// parseResponse decodes one service line into a pose frame.
func parseResponse(line []byte) (pose.Frame, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return pose.Frame{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return pose.Frame{}, fmt.Errorf("pose service: %s", resp.Error)
	}

	points := make([]pose.Landmark, len(resp.Landmarks))
	for i, l := range resp.Landmarks {
		points[i] = pose.Landmark{X: l.X, Y: l.Y, Z: l.Z, Visibility: l.Visibility}
	}
	return pose.NewFrame(points, 0), nil
}
