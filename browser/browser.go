// Package browser bootstraps the Playwright runtime and hands the engine a
// ready dashboard page. Session identity (cookies, fingerprint) is owned by
// external tooling; this package only restores what it is given.
package browser

import (
	"fmt"
	"os"

	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
	"rewardsbot/interact"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
const mobileUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"

// Session bundles the runtime handles that must be torn down together.
type Session struct {
	pw      *pw.Playwright
	Browser pw.Browser
	Context pw.BrowserContext
	Page    pw.Page
}

// Options controls the launch.
type Options struct {
	Headless bool
	Mobile   bool
	Cookies  []pw.OptionalCookie
}

// Launch starts Playwright, launches Chromium and opens a context/page.
func Launch(opts Options, log botlog.Logger) (*Session, error) {
	if log == nil {
		log = botlog.Nop{}
	}

	runtime, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	launch := pw.BrowserTypeLaunchOptions{Headless: pw.Bool(opts.Headless)}
	if path := executablePath(); path != "" {
		launch.ExecutablePath = pw.String(path)
		log.Printf("🚀 using browser executable: %s", path)
	}

	b, err := runtime.Chromium.Launch(launch)
	if err != nil {
		runtime.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	ua := desktopUA
	viewport := &pw.Size{Width: 1280, Height: 800}
	if opts.Mobile {
		ua = mobileUA
		viewport = &pw.Size{Width: 412, Height: 915}
	}
	ctx, err := b.NewContext(pw.BrowserNewContextOptions{
		UserAgent: pw.String(ua),
		Viewport:  viewport,
	})
	if err != nil {
		b.Close()
		runtime.Stop()
		return nil, fmt.Errorf("creating context: %w", err)
	}

	if len(opts.Cookies) > 0 {
		log.Printf("🍪 restoring %d cookies", len(opts.Cookies))
		if err := ctx.AddCookies(opts.Cookies); err != nil {
			log.Warnf("cookie restore failed: %v", err)
		}
	}

	page, err := ctx.NewPage()
	if err != nil {
		ctx.Close()
		b.Close()
		runtime.Stop()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	return &Session{pw: runtime, Browser: b, Context: ctx, Page: page}, nil
}

// Open navigates the session's page to the given URL.
func (s *Session) Open(url string) error {
	_, err := s.Page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   pw.Float(60000),
	})
	return err
}

// Close tears everything down in reverse order. Safe on partial sessions.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.Page != nil {
		interact.Forget(s.Page)
	}
	if s.Context != nil {
		_ = s.Context.Close()
	}
	if s.Browser != nil {
		_ = s.Browser.Close()
	}
	if s.pw != nil {
		_ = s.pw.Stop()
	}
}

// executablePath probes common system browsers so the bot can run without
// a playwright-managed download.
func executablePath() string {
	if path := os.Getenv("PLAYWRIGHT_EXECUTABLE_PATH"); path != "" {
		return path
	}
	for _, p := range []string{
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
