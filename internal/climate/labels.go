package climate

import "sort"

// Label is the display tuple attached to a cluster id.
type Label struct {
	Name  string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var (
	Wet     = Label{Name: "Wet", Color: "#3498db", Icon: "🌧️"}
	Normal  = Label{Name: "Normal", Color: "#2ecc71", Icon: "🌤️"}
	Dry     = Label{Name: "Dry", Color: "#e67e22", Icon: "🌵"}
	Unknown = Label{Name: "Unknown", Color: "#ffffff"}
)

// LabelMap maps cluster ids to labels.
type LabelMap map[int]Label

// Lookup returns the label for id, or Unknown.
func (m LabelMap) Lookup(id int) Label {
	if l, ok := m[id]; ok {
		return l
	}
	return Unknown
}

// ReferenceLabels is the hand-assigned map for the reference three-cluster model.
func ReferenceLabels() LabelMap {
	return LabelMap{0: Wet, 1: Normal, 2: Dry}
}

// AssignLabels names clusters from their unscaled centroids: the centroid
// with the most rain is Wet, the one with the least is Dry and everything in
// between is Normal. Ties keep id order.
func AssignLabels(centroids [][]float64, rainIdx int) LabelMap {
	ids := make([]int, len(centroids))
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return centroids[ids[a]][rainIdx] < centroids[ids[b]][rainIdx]
	})

	m := make(LabelMap, len(ids))
	for rank, id := range ids {
		switch {
		case len(ids) == 1:
			m[id] = Normal
		case rank == 0:
			m[id] = Dry
		case rank == len(ids)-1:
			m[id] = Wet
		default:
			m[id] = Normal
		}
	}
	return m
}
