// Package interact performs robust clicks on an unstable page: it decides
// whether a located element is genuinely interactable, neutralizes
// obstructing overlays, and drives a bounded-retry click protocol that
// detects resulting popups and navigations.
package interact

import (
	pw "github.com/playwright-community/playwright-go"
)

// Marker attribute set on overlays this package hides, so restoration can
// find them regardless of who hid them.
const hiddenOverlayAttr = "data-rb-hidden-overlay"

// Reason classifies why an interaction attempt failed.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNotFound    Reason = "not-found"
	ReasonZeroBox     Reason = "zero-bounding-box"
	ReasonCSSHidden   Reason = "css-hidden"
	ReasonClickFailed Reason = "click-failed"
	ReasonMaxRetries  Reason = "max-retries"
)

// Retryable reports whether a failure reason is worth another attempt.
func Retryable(r Reason) bool {
	switch r {
	case ReasonNotFound, ReasonZeroBox, ReasonCSSHidden, ReasonClickFailed:
		return true
	default:
		return false
	}
}

// Interactable checks that the first element matching sel is present, has a
// non-zero bounding box, and is not hidden by CSS or the hidden attribute.
// Evaluation failures degrade to a negative answer, never an error.
func Interactable(page pw.Page, sel string) (bool, Reason) {
	loc := page.Locator(sel).First()

	count, err := page.Locator(sel).Count()
	if err != nil || count == 0 {
		return false, ReasonNotFound
	}

	box, err := loc.BoundingBox()
	if err != nil || box == nil || box.Width <= 0 || box.Height <= 0 {
		return false, ReasonZeroBox
	}

	raw, err := loc.Evaluate(`(el) => {
		const style = window.getComputedStyle(el);
		if (style.display === 'none') return false;
		if (style.visibility === 'hidden') return false;
		if (parseFloat(style.opacity || '1') <= 0.01) return false;
		if (el.hasAttribute('hidden')) return false;
		return true;
	}`, nil)
	if err != nil {
		return false, ReasonCSSHidden
	}
	if visible, ok := raw.(bool); !ok || !visible {
		return false, ReasonCSSHidden
	}
	return true, ReasonNone
}

// HideOverlapping force-hides positioned elements whose boxes overlap the
// target's bounding box, marking each so RestoreHidden can undo the
// mutation. Best effort: any failure yields a zero count.
func HideOverlapping(page pw.Page, sel string) int {
	loc := page.Locator(sel).First()
	raw, err := loc.Evaluate(`(el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return 0;
		let hidden = 0;
		document.querySelectorAll('body *').forEach((other) => {
			if (other === el || el.contains(other) || other.contains(el)) return;
			const style = window.getComputedStyle(other);
			const positioned = style.position === 'fixed' ||
				style.position === 'absolute' ||
				style.position === 'sticky' ||
				parseInt(style.zIndex || '0', 10) > 0;
			if (!positioned) return;
			const r = other.getBoundingClientRect();
			if (r.width <= 0 || r.height <= 0) return;
			const apart = r.right < rect.left || r.left > rect.right ||
				r.bottom < rect.top || r.top > rect.bottom;
			if (apart) return;
			other.setAttribute('`+hiddenOverlayAttr+`', '1');
			other.style.setProperty('display', 'none', 'important');
			hidden++;
		});
		return hidden;
	}`, nil)
	if err != nil {
		return 0
	}
	return asInt(raw)
}

// RestoreHidden undoes every overlay mutation carrying the marker
// attribute, regardless of which attempt applied it.
func RestoreHidden(page pw.Page) int {
	raw, err := page.Evaluate(`() => {
		const marked = document.querySelectorAll('[` + hiddenOverlayAttr + `]');
		marked.forEach((el) => {
			el.removeAttribute('` + hiddenOverlayAttr + `');
			el.style.removeProperty('display');
		});
		return marked.length;
	}`)
	if err != nil {
		return 0
	}
	return asInt(raw)
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
