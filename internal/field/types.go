package field

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Label names a crop disease.
type Label string

const (
	LabelLeafBlight    Label = "leaf_blight"
	LabelRust          Label = "rust"
	LabelPowderyMildew Label = "powdery_mildew"
)

// Labels lists every disease a planted crop may carry.
var Labels = []Label{LabelLeafBlight, LabelRust, LabelPowderyMildew}

// Crop is one diseased plant in the field.
type Crop struct {
	ID       string
	Label    Label
	Position mgl64.Vec2
}

// Detection is a crop seen by the scanner.
type Detection struct {
	CropID     string
	Label      Label
	Position   mgl64.Vec2
	Distance   float64
	Confidence float64
}
