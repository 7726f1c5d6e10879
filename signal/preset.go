package signal

import "time"

// Standard is the default departure whistle: two holds, a fading quill, a short toot and a stop.
var Standard = Pattern{
	Hold(0.25, 1500*time.Millisecond),
	Hold(1, 2500*time.Millisecond),
	Ramp(1, 0.25, 1750*time.Millisecond),
	Hold(1, 250*time.Millisecond),
	Stop(),
}

const StandardName = "standard"

func presets() map[string]Pattern {
	return map[string]Pattern{
		StandardName: Standard,
	}
}
