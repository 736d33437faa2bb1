// Package sense talks to the remote occupancy service: it asks a sensor to
// publish and listens for the bounding boxes it sends back.
package sense

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/sensevis/internal/exchange"
	"github.com/banshee-data/sensevis/internal/occupancy"
)

type message struct {
	Payload struct {
		Bboxes *[][]float64 `json:"bboxes"`
	} `json:"payload"`
}

// ExtractCentroids pulls detection centroids out of one service message.
// ok is false when the message carries no bboxes field and should be
// skipped. Each bbox of three or more values contributes (bbox[n-3],
// bbox[n-2]); if none qualify the blank sentinel is returned.
func ExtractCentroids(msg []byte) (dets []occupancy.Detection, ok bool, err error) {
	var m message
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, false, fmt.Errorf("decode sensor message: %w", err)
	}
	if m.Payload.Bboxes == nil {
		return nil, false, nil
	}
	for _, bbox := range *m.Payload.Bboxes {
		n := len(bbox)
		if n < 3 {
			continue
		}
		dets = append(dets, occupancy.Detection{X: bbox[n-3], Y: bbox[n-2]})
	}
	if len(dets) == 0 {
		return append([]occupancy.Detection(nil), exchange.Blank...), true, nil
	}
	return dets, true, nil
}
