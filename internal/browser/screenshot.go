package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// ScreenshotDebugger saves full-page screenshots when a navigation fails.
type ScreenshotDebugger struct {
	outputDir string
	log       logrus.FieldLogger
}

func NewScreenshotDebugger(dir string, log logrus.FieldLogger) *ScreenshotDebugger {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).Warn("⚠️ Failed to create screenshot directory")
	}
	return &ScreenshotDebugger{
		outputDir: dir,
		log:       log,
	}
}

func (s *ScreenshotDebugger) Path(name string, at time.Time) string {
	filename := fmt.Sprintf("%s_%s.png", name, at.Format("2006-01-02_15-04-05"))
	return filepath.Join(s.outputDir, filename)
}

func (s *ScreenshotDebugger) CaptureAndLog(page playwright.Page, name, message string) error {
	path := s.Path(name, time.Now())
	s.log.Info("📸 " + message)

	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		s.log.WithError(err).Warn("⚠️ Failed to capture screenshot")
		return err
	}

	s.log.WithField("path", path).Info("Screenshot saved")
	return nil
}
