package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/taigrr/shakedetect/detector"
)

// ANSI escape codes.
const (
	rst     = "\033[0m"
	bold    = "\033[1m"
	dim     = "\033[2m"
	red     = "\033[31m"
	grn     = "\033[32m"
	yel     = "\033[33m"
	cyn     = "\033[36m"
	bred    = "\033[91m"
	bwht    = "\033[97m"
	hideCur = "\033[?25l"
	showCur = "\033[?25h"
	altOn   = "\033[?1049h"
	altOff  = "\033[?1049l"
	clear   = "\033[2J\033[H"

	width  = 76
	blocks = " ▁▂▃▄▅▆▇█"

	maxShakes = 5
)

// frame is one snapshot of detector state to draw.
type frame struct {
	Elapsed    time.Duration
	Config     detector.Config
	Stats      detector.Stats
	Magnitudes []float64
	Shakes     []time.Time
}

func render(f frame) string {
	st, cfg := f.Stats, f.Config
	elapsed := f.Elapsed.Seconds()
	rate := 0.0
	if elapsed >= 1 {
		rate = float64(st.Accepted) / elapsed
	}

	var b strings.Builder
	gw := width - 4

	line := func(content string) {
		vl := visLen(content)
		pad := max(0, width-vl)
		fmt.Fprintf(&b, "%s│%s%s%s│%s\n", dim, rst, content, strings.Repeat(" ", pad), rst)
	}
	sep := func(label string) {
		if label != "" {
			rest := width - visLen(label) - 1
			fmt.Fprintf(&b, "%s├─%s%s┤%s\n", dim, label, strings.Repeat("─", rest), rst)
		} else {
			fmt.Fprintf(&b, "%s├%s┤%s\n", dim, strings.Repeat("─", width), rst)
		}
	}

	// Header
	title := " SHAKE DETECTOR "
	topBar := strings.Repeat("─", width-len(title)-1)
	fmt.Fprintf(&b, "%s┌─%s%s%s%s%s┐%s\n", dim, rst, bwht, title, rst, dim+topBar, rst)

	hdr := fmt.Sprintf(" %s%7.1fs%s  %8d smp  %s%.0f%s Hz  drop:%d  shakes:%d",
		dim, elapsed, rst, st.Accepted, bwht, rate, rst, st.Dropped, st.Fired)
	line(hdr)

	// Magnitudes, scaled so the threshold sits at half height.
	sep(fmt.Sprintf(" Magnitude (last %d samples) ", cfg.Capacity))
	ceil := 2 * cfg.MagnitudeThreshold
	if len(f.Magnitudes) > 0 {
		col := grn
		if st.LastMagnitude >= cfg.MagnitudeThreshold {
			col = bred
		}
		line(fmt.Sprintf("  %s%s%s", col, sparkline(downsample(f.Magnitudes, gw), gw, ceil), rst))
		line(fmt.Sprintf("  %slast %.2f  threshold %.2f%s", dim, st.LastMagnitude, cfg.MagnitudeThreshold, rst))
	} else {
		line(fmt.Sprintf("  %swaiting...%s", dim, rst))
		line("")
	}

	// Window ratio
	sep(fmt.Sprintf(" Window %s ", cfg.VisibleWindow))
	pct := st.Ratio * 100
	col := dim
	if pct > cfg.OverThresholdPercent {
		col = bred
	}
	gwid := width - 24
	line(fmt.Sprintf(" %s%s%s %s%5.1f%%%s  %d/%d over",
		cyn, gauge(pct, cfg.OverThresholdPercent, 0, 100, gwid), rst, col, pct, rst, st.Over, st.Recent))

	// Sequence progress
	sep(" Sequence ")
	done := min(st.ShakeCount, cfg.RequiredShakeCount)
	slots := min(cfg.RequiredShakeCount, width-30)
	filled := done * slots / max(1, cfg.RequiredShakeCount)
	bar := yel + strings.Repeat("●", filled) + dim + strings.Repeat("○", slots-filled) + rst
	line(fmt.Sprintf(" %s %d/%d  %swindow %s%s", bar, st.ShakeCount, cfg.RequiredShakeCount, dim, cfg.ShakingWindow, rst))

	// Recent shakes
	sep(" Shakes ")
	for i := len(f.Shakes) - 1; i >= 0; i-- {
		line(fmt.Sprintf(" %s%s%s %s%sSHAKE%s",
			dim, f.Shakes[i].Format("15:04:05.000"), rst, bred, bold, rst))
	}
	for range max(0, maxShakes-len(f.Shakes)) {
		line("")
	}

	// Footer
	sep("")
	state := grn + "listening" + rst
	if !st.Listening {
		state = red + "stopped" + rst
	}
	line(fmt.Sprintf(" %s  %sctrl+c to quit%s", state, dim, rst))
	fmt.Fprintf(&b, "%s└%s┘%s\n", dim, strings.Repeat("─", width), rst)

	return b.String()
}

func sparkline(data []float64, width int, ceil float64) string {
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	d := data
	if len(d) < width {
		pad := make([]float64, width-len(d))
		d = append(pad, d...)
	} else if len(d) > width {
		d = d[len(d)-width:]
	}
	if ceil <= 0 {
		for _, v := range d {
			if math.Abs(v) > ceil {
				ceil = math.Abs(v)
			}
		}
	}
	if ceil <= 0 {
		ceil = 1
	}
	blk := []rune(blocks)
	var b strings.Builder
	for _, v := range d {
		frac := math.Min(1, math.Abs(v)/ceil)
		idx := min(8, int(frac*8))
		b.WriteRune(blk[idx])
	}
	return b.String()
}

// gauge draws value on a bar spanning [vmin, vmax] with a tick at mark.
func gauge(value, mark, vmin, vmax float64, width int) string {
	rng := vmax - vmin
	if rng == 0 {
		rng = 1
	}
	at := func(v float64) int {
		t := math.Max(0, math.Min(1, (v-vmin)/rng))
		return int(t * float64(width-1))
	}
	bar := make([]rune, width)
	for i := range bar {
		bar[i] = '─'
	}
	bar[at(mark)] = '┼'
	bar[at(value)] = '●'
	return string(bar)
}

func downsample(data []float64, width int) []float64 {
	n := len(data)
	if n <= width {
		return data
	}
	step := float64(n) / float64(width)
	out := make([]float64, width)
	for c := range width {
		si := int(float64(c) * step)
		ei := int(float64(c+1) * step)
		mx := data[si]
		for j := si + 1; j < ei && j < n; j++ {
			if data[j] > mx {
				mx = data[j]
			}
		}
		out[c] = mx
	}
	return out
}

func visLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if r == '\033' {
			inEsc = true
			continue
		}
		if inEsc {
			if r == 'm' {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
