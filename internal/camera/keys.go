package camera

// Keys names the store keys and channels of one camera.
type Keys struct {
	ID string
}

// Color is both the color frame key and its notification channel.
func (k Keys) Color() string { return k.ID }

func (k Keys) Width() string            { return k.ID + ":width" }
func (k Keys) Height() string           { return k.ID + ":height" }
func (k Keys) Channels() string         { return k.ID + ":channels" }
func (k Keys) PixelFormat() string      { return k.ID + ":pixelformat" }
func (k Keys) Calibration() string      { return k.ID + ":calibration" }
func (k Keys) Markers() string          { return k.ID + ":markers" }
func (k Keys) DepthRaw() string         { return k.ID + ":depth:raw" }
func (k Keys) DepthWidth() string       { return k.ID + ":depth:width" }
func (k Keys) DepthHeight() string      { return k.ID + ":depth:height" }
func (k Keys) DepthCalibration() string { return k.ID + ":depth:calibration" }
func (k Keys) DepthExtrinsics() string  { return k.ID + ":extrinsics:depth" }
func (k Keys) Table() string            { return k.ID + ":table" }

// Location returns the key of a named 4x4 location ("table" gives Table()).
func (k Keys) Location(name string) string { return k.ID + ":" + name }
