package domain

// Region is a coarse geographic partition assigned to each station.
type Region string

const (
	RegionSouth   Region = "South"
	RegionEast    Region = "East"
	RegionMid     Region = "Mid"
	RegionWest    Region = "West"
	RegionUnknown Region = "Unknown"
)

// RegionClassifier assigns a region to a coordinate pair. Implementations
// must be pure: the same input always yields the same region, and every
// coordinate maps to exactly one region. New region schemes are added as new
// implementations, not by changing an existing one.
type RegionClassifier interface {
	Classify(lat, lon float64) Region
}

// QuadrantClassifier splits the contiguous United States into four coarse
// regions by latitude and longitude. Rules are evaluated in order; the first
// match wins.
type QuadrantClassifier struct{}

func (QuadrantClassifier) Classify(lat, lon float64) Region {
	switch {
	case lat < 35:
		return RegionSouth
	case lon > -80:
		return RegionEast
	case lon > -100 && lon <= -80:
		return RegionMid
	case lon <= -100:
		return RegionWest
	default:
		// NaN coordinates fail every comparison and land here.
		return RegionUnknown
	}
}

var _ RegionClassifier = QuadrantClassifier{}
