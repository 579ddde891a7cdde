package scenesync

import (
	"github.com/hako/durafmt"
	"github.com/sirupsen/logrus"

	"terrasync/world"
)

// LogScene is a Scene without a display. It logs a summary of what it is
// given, which is enough to watch the pipeline in headless runs.
type LogScene struct {
	Log logrus.Ext1FieldLogger
}

func (l *LogScene) SetTerrainColors(width, height int, rgb []float32) {
	l.Log.Infof("terrain %dx%d", width, height)
}

func (l *LogScene) SetOwnershipColors(width, height int, rgb []float32) {
	claimed := 0
	for i := 0; i+2 < len(rgb); i += 3 {
		if rgb[i] != 0 || rgb[i+1] != 0 || rgb[i+2] != 0 {
			claimed++
		}
	}
	l.Log.Debugf("ownership %dx%d, %d cells claimed", width, height, claimed)
}

func (l *LogScene) SetLabels(labels []Label) {
	l.Log.Debugf("%d labels", len(labels))
	for _, lb := range labels {
		l.Log.Tracef("label %q at (%.0f,%.0f) size %.1f", lb.Text, lb.X, lb.Y, lb.FontSize)
	}
}

func (l *LogScene) SetViewport(v Viewport) {
	l.Log.Infof("viewport %dx%d", v.Width, v.Height)
}

func (l *LogScene) SetStatus(cs world.ConnState) {
	e := l.Log.WithField("status", cs.Status.String())
	if cs.RetryDelay > 0 {
		e = e.WithField("retry_in", durafmt.Parse(cs.RetryDelay).String())
	}
	if cs.LastError != "" {
		e = e.WithField("error", cs.LastError)
	}
	e.Info("connection")
}
