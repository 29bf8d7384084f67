package models

import (
	"image"
	"time"
)

// Box is a bounding box in pixel coordinates. XMin < XMax and YMin < YMax for any box a
// detector returns.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

func (b Box) Width() int  { return b.XMax - b.XMin }
func (b Box) Height() int { return b.YMax - b.YMin }

// Rect returns the box as an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Valid reports whether the box has a positive area
func (b Box) Valid() bool {
	return b.XMin < b.XMax && b.YMin < b.YMax
}

// Detection is one object found by the detector in a single image
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassName  string  `json:"class_name"`
}

// RiskClass is the binary output of the weather risk classifier
type RiskClass int

const (
	RiskLow  RiskClass = 0
	RiskHigh RiskClass = 1
)

func (r RiskClass) String() string {
	if r == RiskHigh {
		return "HIGH"
	}
	return "LOW"
}

// RiskVerdict is the classifier output for one set of weather features.
// Probability is the probability of RiskHigh.
type RiskVerdict struct {
	PredictedClass RiskClass `json:"predicted_class"`
	Probability    float64   `json:"probability"`
}

// High reports whether the verdict predicts the high-risk class
func (v RiskVerdict) High() bool {
	return v.PredictedClass == RiskHigh
}

// WeatherFeatures are the four classifier inputs, in model order
type WeatherFeatures struct {
	Temperature   float64 `json:"tmp"`
	VaporPressure float64 `json:"vap"`
	Precipitation float64 `json:"pre"`
	CloudCover    float64 `json:"cld"`
}

// Vector returns the features in the order the classifier was trained on
func (f WeatherFeatures) Vector() []float64 {
	return []float64{f.Temperature, f.VaporPressure, f.Precipitation, f.CloudCover}
}

// Location is a geocoded address
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// WeatherRecord is the current weather at a location
type WeatherRecord struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	CloudCover    float64 `json:"cloud_cover"`
	VaporPressure float64 `json:"vapor_pressure"`
}

// Features maps a weather record onto classifier inputs
func (w WeatherRecord) Features() WeatherFeatures {
	return WeatherFeatures{
		Temperature:   w.Temperature,
		VaporPressure: w.VaporPressure,
		Precipitation: w.Precipitation,
		CloudCover:    w.CloudCover,
	}
}

// Assessment is the result of one pipeline run. The canvas passed to the pipeline holds the
// annotations; it is not part of this struct.
type Assessment struct {
	Code       string          `json:"assessment"`
	Verdict    RiskVerdict     `json:"verdict"`
	Decisions  []Decision      `json:"detections"`
	Banner     *Case           `json:"banner,omitempty"`
	Features   WeatherFeatures `json:"features"`
	Duration   time.Duration   `json:"duration"`
	AssessedAt time.Time       `json:"assessed_at"`
}

// TopConfidence returns the highest detection confidence, or 0 without detections
func (a *Assessment) TopConfidence() float64 {
	top := 0.0
	for _, d := range a.Decisions {
		if d.Detection.Confidence > top {
			top = d.Detection.Confidence
		}
	}
	return top
}
