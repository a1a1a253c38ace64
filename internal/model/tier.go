package model

import "fmt"

// Tier is a named target quality level.
type Tier struct {
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	VideoBitrate int    `json:"videoBitrate"` // kbps
	AudioBitrate int    `json:"audioBitrate"` // kbps
}

// LowTier is always produced, whatever the source size.
const LowTier = "low"

// DefaultTiers is the fixed ladder, in processing order.
var DefaultTiers = []Tier{
	{Name: LowTier, Width: 640, Height: 360, VideoBitrate: 800, AudioBitrate: 96},
	{Name: "medium", Width: 1280, Height: 720, VideoBitrate: 2500, AudioBitrate: 128},
	{Name: "high", Width: 1920, Height: 1080, VideoBitrate: 5000, AudioBitrate: 192},
}

// VideoBitrateArg formats the video bitrate for the encoder, e.g. "800k".
func (t Tier) VideoBitrateArg() string {
	return fmt.Sprintf("%dk", t.VideoBitrate)
}

func (t Tier) AudioBitrateArg() string {
	return fmt.Sprintf("%dk", t.AudioBitrate)
}

// Bandwidth is the HLS BANDWIDTH attribute in bits per second.
func (t Tier) Bandwidth() int {
	return t.VideoBitrate * 1000
}
