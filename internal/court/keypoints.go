package court

import "github.com/ironsheep/courtcal/internal/geometry"

// ITF court dimensions in metres.
const (
	SinglesWidth          = 8.23
	DoublesWidth          = 10.97
	Length                = 23.77
	NetToServiceLine      = 6.40
	ServiceLineToBaseline = 5.49

	// AlleyWidth is the strip between singles and doubles sidelines.
	AlleyWidth = (DoublesWidth - SinglesWidth) / 2
	// NetY is the distance from the near baseline to the net.
	NetY = Length / 2
)

// Keypoint is a named court landmark in world metres.
type Keypoint struct {
	Name  string         `json:"name"`
	World geometry.Point `json:"world"`
}

// Indices of the landmarks the homography estimator fits against. The order
// matches the estimator's intersection order and must not change.
const (
	NearLeftBaseline = iota
	NearRightBaseline
	NearLeftService
	NearRightService
)

// keypoints is origin-anchored at the near-left singles baseline corner,
// X along the baseline to the right, Y towards the far baseline.
var keypoints = []Keypoint{
	{"near_left_baseline", geometry.Pt(0, 0)},
	{"near_right_baseline", geometry.Pt(SinglesWidth, 0)},
	{"near_left_service", geometry.Pt(0, ServiceLineToBaseline)},
	{"near_right_service", geometry.Pt(SinglesWidth, ServiceLineToBaseline)},
	{"near_service_t", geometry.Pt(SinglesWidth/2, ServiceLineToBaseline)},
	{"net_left", geometry.Pt(0, NetY)},
	{"net_right", geometry.Pt(SinglesWidth, NetY)},
	{"net_center", geometry.Pt(SinglesWidth/2, NetY)},
	{"far_left_service", geometry.Pt(0, Length-ServiceLineToBaseline)},
	{"far_right_service", geometry.Pt(SinglesWidth, Length-ServiceLineToBaseline)},
	{"far_service_t", geometry.Pt(SinglesWidth/2, Length-ServiceLineToBaseline)},
	{"far_left_baseline", geometry.Pt(0, Length)},
	{"far_right_baseline", geometry.Pt(SinglesWidth, Length)},
	{"near_left_doubles", geometry.Pt(-AlleyWidth, 0)},
	{"near_right_doubles", geometry.Pt(SinglesWidth+AlleyWidth, 0)},
	{"far_left_doubles", geometry.Pt(-AlleyWidth, Length)},
	{"far_right_doubles", geometry.Pt(SinglesWidth+AlleyWidth, Length)},
}

// Keypoints returns a copy of the ordered world keypoint table.
func Keypoints() []Keypoint {
	out := make([]Keypoint, len(keypoints))
	copy(out, keypoints)
	return out
}

// WorldPoints returns the world coordinates of the table in order.
func WorldPoints() []geometry.Point {
	out := make([]geometry.Point, len(keypoints))
	for i, k := range keypoints {
		out[i] = k.World
	}
	return out
}
