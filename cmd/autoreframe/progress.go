package main

import (
	"fmt"
	"io"
	"time"

	"github.com/keagan/autoreframe/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

// progressBar shows a 0-100 bar on stderr. Analysis relabels it per stage.
type progressBar struct {
	bar   *progressbar.ProgressBar
	stage pipeline.Stage
}

func newBar(w io.Writer, description string) *progressBar {
	return &progressBar{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)}
}

func newStageBar(w io.Writer) *progressBar {
	return newBar(w, string(pipeline.StageProbe))
}

func newPercentBar(w io.Writer, description string) *progressBar {
	return newBar(w, description)
}

// Update follows analysis stages.
func (p *progressBar) Update(stage pipeline.Stage, fraction float64) {
	if stage != p.stage {
		// a stage that reached 100% leaves the bar finished; later Sets are ignored until Reset
		p.stage = stage
		p.bar.Reset()
		p.bar.Describe(fmt.Sprintf("%-10s", stage))
	}
	p.Set(fraction * 100)
}

// Set moves the bar to percent.
func (p *progressBar) Set(percent float64) {
	_ = p.bar.Set(int(min(max(percent, 0), 100)))
}

func (p *progressBar) Done() {
	_ = p.bar.Finish()
}
