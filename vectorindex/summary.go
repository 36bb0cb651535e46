package vectorindex

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// FloatSummary is the deployment and drift metadata of one float, as
// produced by the offline summarisation job.
type FloatSummary struct {
	FloatID             int64    `json:"FLOAT_ID"`
	WMOInstType         string   `json:"WMO_INST_TYPE"`
	PIName              string   `json:"PI_NAME"`
	OperatingInstitute  string   `json:"OPERATING_INSTITUTION"`
	ProjectName         string   `json:"PROJECT_NAME"`
	StartDateQC         string   `json:"START_DATE_QC"`
	LaunchDate          string   `json:"LAUNCH_DATE"`
	LaunchLatitude      float64  `json:"LAUNCH_LATITUDE"`
	LaunchLongitude     float64  `json:"LAUNCH_LONGITUDE"`
	StartDate           string   `json:"START_DATE"`
	EndMissionDate      string   `json:"END_MISSION_DATE"`
	EndMissionStatus    string   `json:"END_MISSION_STATUS"`
	NumProfiles         int      `json:"NUM_PROFILES"`
	MissionDurationYrs  float64  `json:"MISSION_DURATION_YEARS"`
	MissionDurationDays float64  `json:"MISSION_DURATION_DAYS"`
	PlatformMaker       string   `json:"PLATFORM_MAKER"`
	PlatformType        string   `json:"PLATFORM_TYPE"`
	Sensors             []string `json:"SENSORS"`
	DominantRegion      string   `json:"DOMINANT_REGION"`
	PctInDominantRegion float64  `json:"PCT_IN_DOMINANT_REGION"`
	RegionsVisited      []string `json:"REGIONS_VISITED"`
	LatMin              float64  `json:"LAT_MIN"`
	LatMax              float64  `json:"LAT_MAX"`
	LonMin              float64  `json:"LON_MIN"`
	LonMax              float64  `json:"LON_MAX"`
	CentroidLat         float64  `json:"CENTROID_LAT"`
	CentroidLon         float64  `json:"CENTROID_LON"`
	FirstRegion         string   `json:"FIRST_REGION"`
	LastRegion          string   `json:"LAST_REGION"`
}

// flagSensors and flagRegions are the boolean metadata keys derived from the
// sensor and region lists.
var (
	flagSensors = []string{"TEMP", "PSAL", "PRES", "DOXY"}
	flagRegions = []string{"INDIAN OCEAN", "ARABIAN SEA", "BAY OF BENGAL", "LACCADIVE SEA"}
)

// Document renders the descriptive text that gets embedded.
func (s FloatSummary) Document() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Float %d (WMO %s), deployed by %s from %s under %s with start date qc: %s, ",
		s.FloatID, s.WMOInstType, s.PIName, s.OperatingInstitute, s.ProjectName, s.StartDateQC)
	fmt.Fprintf(&b, "was launched on %s at Latitude %g, Longitude %g.\n\n", s.LaunchDate, s.LaunchLatitude, s.LaunchLongitude)
	fmt.Fprintf(&b, "Mission Duration: %s to %s (%s), collecting %d profiles over %g years or %g days.\n\n",
		s.StartDate, s.EndMissionDate, s.EndMissionStatus, s.NumProfiles, s.MissionDurationYrs, s.MissionDurationDays)
	fmt.Fprintf(&b, "Platform Maker: %s and Platform Type: %s\n\n", s.PlatformMaker, s.PlatformType)
	fmt.Fprintf(&b, "Sensors: %s\n\n", strings.Join(s.Sensors, ", "))
	b.WriteString("Drift Summary:\n")
	fmt.Fprintf(&b, "- Dominant Region: %s (%g%% of profiles)\n", s.DominantRegion, s.PctInDominantRegion)
	fmt.Fprintf(&b, "- Regions Visited: %s\n", strings.Join(s.RegionsVisited, ", "))
	fmt.Fprintf(&b, "- Latitude: %g to %g, Longitude: %g to %g\n", s.LatMin, s.LatMax, s.LonMin, s.LonMax)
	fmt.Fprintf(&b, "- Centroid: Latitude %g, Longitude %g\n", s.CentroidLat, s.CentroidLon)
	fmt.Fprintf(&b, "- First Visited Region: %s, Last Visited Region: %s\n", s.FirstRegion, s.LastRegion)
	return b.String()
}

// Metadata returns the filterable attributes, keyed the way filters name them.
func (s FloatSummary) Metadata() map[string]any {
	meta := map[string]any{
		"FLOAT_ID":              s.FloatID,
		"END_MISSION_STATUS":    s.EndMissionStatus,
		"MISSION_DURATION_DAYS": s.MissionDurationDays,
		"DOMINANT_REGION":       s.DominantRegion,
		"REGIONS_VISITED":       strings.Join(s.RegionsVisited, ", "),
		"LAT_MIN":               s.LatMin,
		"LAT_MAX":               s.LatMax,
		"LON_MIN":               s.LonMin,
		"LON_MAX":               s.LonMax,
		"CENTROID_LAT":          s.CentroidLat,
		"CENTROID_LON":          s.CentroidLon,
		"FIRST_REGION":          s.FirstRegion,
		"LAST_REGION":           s.LastRegion,
	}

	for _, sensor := range flagSensors {
		meta["HAS "+sensor] = containsFold(s.Sensors, sensor)
	}
	for _, region := range flagRegions {
		meta["VISITED "+region] = containsFold(s.RegionsVisited, region)
	}
	return meta
}

// ContentHash fingerprints the document so unchanged summaries are not re-embedded.
func (s FloatSummary) ContentHash() string {
	sum := sha256.Sum256([]byte(s.Document()))
	return fmt.Sprintf("%x", sum[:])
}

func containsFold(list []string, want string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), want) {
			return true
		}
	}
	return false
}
