// Package fingerprint assembles the coherent browser identity a challenge
// solve presents: the TLS/header profile applied to the transport (see
// Profile) and the device telemetry the challenge VM encodes into its
// answer payload.
//
// The platform's interpreter collects screen geometry, navigator
// properties, WebGL vendor/renderer strings, and a pointer-movement trace,
// then feeds them through the recovered VM opcodes.  Telemetry holds that
// data; Generate produces randomised but statistically plausible values
// consistent with the Chrome profile the transport presents.  A mismatch
// between any of these signals and the TLS/header fingerprint is a reliable
// automation tell, so the pools below are restricted to values real Windows
// Chrome clients report.
package fingerprint

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ScreenInfo is the screen/viewport geometry the VM reads from the page.
type ScreenInfo struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	AvailWidth  int `json:"availWidth"`
	AvailHeight int `json:"availHeight"`
	ColorDepth  int `json:"colorDepth"`
	PixelDepth  int `json:"pixelDepth"`
}

// NavigatorInfo is the subset of navigator properties the interpreter
// samples.
type NavigatorInfo struct {
	PluginsLength       int    `json:"pluginsLength"`
	Platform            string `json:"platform"`
	Language            string `json:"language"`
	Languages           string `json:"languages"`
	CookiesEnabled      bool   `json:"cookiesEnabled"`
	HardwareConcurrency int    `json:"hardwareConcurrency"`
	MaxTouchPoints      int    `json:"maxTouchPoints"`

	// WebDriver mirrors navigator.webdriver.  It must stay false; a true
	// value fails the solve outright.
	WebDriver bool `json:"webDriver"`
}

// WebGLInfo carries the four GPU strings the VM's WebGL probe reads: the
// masked pair from plain getParameter calls and the unmasked pair exposed
// through the WEBGL_debug_renderer_info extension.
type WebGLInfo struct {
	MaskedVendor     string `json:"maskedVendor"`
	MaskedRenderer   string `json:"maskedRenderer"`
	UnmaskedVendor   string `json:"unmaskedVendor"`
	UnmaskedRenderer string `json:"unmaskedRenderer"`
}

// MousePoint is one sample of the pointer trace.  EventType is 0 for a
// move, 1 for button down, 2 for button up.
type MousePoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	T         int64   `json:"t"`
	EventType int     `json:"e"`
}

// Telemetry is the device profile a solve encodes through the recovered
// opcode table.  The fields map one-to-one onto the values the obfuscated
// interpreter collects client-side.
type Telemetry struct {
	Screen         ScreenInfo    `json:"screen"`
	Navigator      NavigatorInfo `json:"navigator"`
	WebGL          WebGLInfo     `json:"webgl"`
	TimezoneOffset int           `json:"timezoneOffset"`
	MouseMovements []MousePoint  `json:"mouseMovements"`
	CanvasHash     string        `json:"canvasHash"`
	Timestamp      int64         `json:"timestamp"`
}

// commonScreens lists the screen geometries most reported by real Windows
// Chrome clients.
var commonScreens = []ScreenInfo{
	{1920, 1080, 1920, 1040, 24, 24},
	{1366, 768, 1366, 728, 24, 24},
	{1536, 864, 1536, 824, 24, 24},
	{1440, 900, 1440, 860, 24, 24},
	{2560, 1440, 2560, 1400, 24, 24},
	{1600, 900, 1600, 860, 24, 24},
}

// commonTimezoneOffsets follows the JS Date.getTimezoneOffset convention:
// minutes behind UTC, so zones ahead of UTC are negative.
var commonTimezoneOffsets = []int{0, -60, 300, 360, 420, 480}

// commonGPUs pairs ANGLE renderer strings with their vendors, as reported
// by Chrome on Windows through WEBGL_debug_renderer_info.
var commonGPUs = []WebGLInfo{
	{
		MaskedVendor:     "WebKit",
		MaskedRenderer:   "WebKit WebGL",
		UnmaskedVendor:   "Google Inc. (NVIDIA)",
		UnmaskedRenderer: "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 SUPER Direct3D11 vs_5_0 ps_5_0, D3D11)",
	},
	{
		MaskedVendor:     "WebKit",
		MaskedRenderer:   "WebKit WebGL",
		UnmaskedVendor:   "Google Inc. (Intel)",
		UnmaskedRenderer: "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)",
	},
	{
		MaskedVendor:     "WebKit",
		MaskedRenderer:   "WebKit WebGL",
		UnmaskedVendor:   "Google Inc. (AMD)",
		UnmaskedRenderer: "ANGLE (AMD, AMD Radeon RX 580 Series Direct3D11 vs_5_0 ps_5_0, D3D11)",
	},
}

// GenerateTelemetry produces a Telemetry with randomised but plausible
// values.  rng may be nil, in which case a source seeded from the clock is
// used.
func GenerateTelemetry(rng *rand.Rand) *Telemetry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404
	}

	screen := commonScreens[rng.Intn(len(commonScreens))]

	return &Telemetry{
		Screen: screen,
		Navigator: NavigatorInfo{
			PluginsLength:       3 + rng.Intn(3),
			Platform:            "Win32",
			Language:            "en-US",
			Languages:           "en-US,en",
			CookiesEnabled:      true,
			HardwareConcurrency: hwConcurrency(rng),
			MaxTouchPoints:      0,
			WebDriver:           false,
		},
		WebGL:          commonGPUs[rng.Intn(len(commonGPUs))],
		TimezoneOffset: commonTimezoneOffsets[rng.Intn(len(commonTimezoneOffsets))],
		MouseMovements: generateMousePath(rng, screen.Width, screen.Height),
		CanvasHash:     fmt.Sprintf("%08x", rng.Uint32()),
		Timestamp:      time.Now().UnixMilli(),
	}
}

// hwConcurrency returns a plausible navigator.hardwareConcurrency value,
// weighted towards the 4/8-core machines that dominate real traffic.
func hwConcurrency(rng *rand.Rand) int {
	choices := []int{4, 4, 4, 8, 8, 8, 12, 16}
	return choices[rng.Intn(len(choices))]
}

// generateMousePath traces a curved pointer path across the viewport ending
// in a click, sampled along a cubic Bezier with positional and timing
// jitter.  The platform scores the trace behaviourally, so the path must be
// non-linear and the inter-sample delays must decelerate near the target.
func generateMousePath(rng *rand.Rand, screenW, screenH int) []MousePoint {
	const (
		minPoints = 18
		maxPoints = 45
	)
	n := minPoints + rng.Intn(maxPoints-minPoints+1)

	x0 := float64(50 + rng.Intn(screenW/4))
	y0 := float64(50 + rng.Intn(screenH/4))
	x3 := float64(screenW/4 + rng.Intn(screenW/2))
	y3 := float64(screenH/4 + rng.Intn(screenH/2))

	x1 := x0 + float64(rng.Intn(screenW/3)+screenW/6)
	y1 := y0 - float64(rng.Intn(screenH/4)+30)
	x2 := x3 - float64(rng.Intn(screenW/3)+screenW/6)
	y2 := y3 + float64(rng.Intn(screenH/4)+30)

	points := make([]MousePoint, 0, n+2)

	baseT := int64(800 + rng.Intn(1200))
	elapsed := int64(0)

	for i := 0; i < n; i++ {
		rawT := float64(i) / float64(n-1)
		bt := easeInOut(rawT)

		x, y := cubicBezier(bt, x0, y0, x1, y1, x2, y2, x3, y3)
		x += (rng.Float64() - 0.5) * 1.2
		y += (rng.Float64() - 0.5) * 1.2

		speed := 0.5 + math.Sin(math.Pi*rawT)
		delay := int64(math.Round(12/(speed+0.1))) + int64(rng.Intn(6)) - 2
		if delay < 4 {
			delay = 4
		}
		elapsed += delay

		points = append(points, MousePoint{
			X:         math.Round(x*100) / 100,
			Y:         math.Round(y*100) / 100,
			T:         baseT + elapsed,
			EventType: 0,
		})
	}

	lastT := points[len(points)-1].T
	points = append(points,
		MousePoint{X: x3, Y: y3, T: lastT + int64(20+rng.Intn(40)), EventType: 1},
		MousePoint{X: x3, Y: y3, T: lastT + int64(80+rng.Intn(120)), EventType: 2},
	)

	return points
}

func cubicBezier(t, x0, y0, x1, y1, x2, y2, x3, y3 float64) (float64, float64) {
	u := 1 - t
	x := u*u*u*x0 + 3*u*u*t*x1 + 3*u*t*t*x2 + t*t*t*x3
	y := u*u*u*y0 + 3*u*u*t*y1 + 3*u*t*t*y2 + t*t*t*y3
	return x, y
}

func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t)
}
