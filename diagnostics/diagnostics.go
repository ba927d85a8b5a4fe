// Package diagnostics captures page evidence when a handler fails.
// Everything here is fire-and-forget: capture failures are logged and
// dropped.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
)

// Capturer writes screenshots into a directory, one per failure tag.
type Capturer struct {
	dir string
	log botlog.Logger
}

func New(dir string, log botlog.Logger) *Capturer {
	if log == nil {
		log = botlog.Nop{}
	}
	return &Capturer{dir: dir, log: log}
}

// Capture screenshots the page under a tag-plus-uuid filename.
func (c *Capturer) Capture(page pw.Page, tag string) {
	if page == nil || c.dir == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.log.Warnf("diagnostics dir: %v", err)
		return
	}
	name := fmt.Sprintf("%s_%s_%s.png",
		time.Now().Format("20060102T150405"), tag, uuid.NewString()[:8])
	path := filepath.Join(c.dir, name)
	if _, err := page.Screenshot(pw.PageScreenshotOptions{
		Path:     pw.String(path),
		FullPage: pw.Bool(true),
	}); err != nil {
		c.log.Warnf("screenshot for %q failed: %v", tag, err)
		return
	}
	c.log.Printf("📸 captured %s", path)
}
