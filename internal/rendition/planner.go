package rendition

import (
	"fmt"
	"math"

	"lessonflow/internal/model"
)

// Target is one tier the encoder will produce, at concrete dimensions.
type Target struct {
	Tier   model.Tier
	Width  int
	Height int
}

// Resolution formats the target as WIDTHxHEIGHT.
func (t Target) Resolution() string {
	return fmt.Sprintf("%dx%d", t.Width, t.Height)
}

// Plan decides which tiers to produce for a source, in tier-table order.
//
// The low tier is always included. Any other tier is skipped when the source is
// narrower or shorter than the tier's nominal size, so nothing is upscaled.
// Included tiers keep the source aspect ratio: sources wider than 16:9 hold the
// tier width and derive the height, all others hold the tier height and derive
// the width. Derived sides are rounded to the nearest even number.
func Plan(info model.VideoInfo, tiers []model.Tier) []Target {
	if info.Width <= 0 || info.Height <= 0 {
		return nil
	}

	plan := make([]Target, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Name != model.LowTier && (info.Width < tier.Width || info.Height < tier.Height) {
			continue
		}
		plan = append(plan, fit(info.Width, info.Height, tier))
	}
	return plan
}

func fit(srcW, srcH int, tier model.Tier) Target {
	t := Target{Tier: tier}
	if srcW*9 > srcH*16 {
		t.Width = tier.Width
		t.Height = evenRound(float64(tier.Width) * float64(srcH) / float64(srcW))
	} else {
		t.Height = tier.Height
		t.Width = evenRound(float64(tier.Height) * float64(srcW) / float64(srcH))
	}
	return t
}

func evenRound(v float64) int {
	n := int(math.Round(v/2)) * 2
	if n < 2 {
		return 2
	}
	return n
}
