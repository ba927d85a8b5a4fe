// Package selector turns an activity descriptor into an ordered list of
// locator hypotheses. The dashboard markup is unstable, so every candidate
// is a guess to be validated at click time; resolution itself never fails
// and never mutates the page.
package selector

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
)

// Attribute expected to carry an activity identifier on dashboard cards.
const idAttr = "data-bi-id"

// Class carried by the clickable point element inside a card.
const pointLinkClass = ".pointLink"

// Recognizer for ancestor identifiers that belong to the daily/gamification
// card family.
var cardIDPattern = regexp.MustCompile(`(?i)gamification|daily`)

// Target carries the activity fields resolution keys on.
type Target struct {
	OfferID        string
	Name           string
	Title          string
	DestinationURL string
}

// Resolver builds locator candidates against a live page.
type Resolver struct {
	log botlog.Logger
}

func New(log botlog.Logger) *Resolver {
	if log == nil {
		log = botlog.Nop{}
	}
	return &Resolver{log: log}
}

// Resolve returns the ordered, deduplicated candidate list for the target.
// punchCardHint, when non-empty, is an externally supplied locator tried
// before everything else. The generic fallbacks are always appended, so the
// result is never empty.
func (r *Resolver) Resolve(page pw.Page, t Target, punchCardHint string) []string {
	var scanned, textual []string
	if page != nil {
		scanned = r.scanCardAncestors(page)
		textual = r.scanByTitle(page, t.Title)
	}
	return Assemble(punchCardHint, identityCandidates(t), scanned, hrefCandidates(t.DestinationURL), textual, genericFallbacks())
}

// Assemble concatenates candidate groups in priority order, dropping
// duplicates and empty strings.
func Assemble(punchCardHint string, groups ...[]string) []string {
	out := make([]string, 0, 16)
	seen := make(map[string]bool)
	add := func(sel string) {
		sel = strings.TrimSpace(sel)
		if sel == "" || seen[sel] {
			return
		}
		seen[sel] = true
		out = append(out, sel)
	}
	add(punchCardHint)
	for _, group := range groups {
		for _, sel := range group {
			add(sel)
		}
	}
	return out
}

// identityCandidates builds prefix and substring matches on the identifier
// attribute from offerId and name.
func identityCandidates(t Target) []string {
	var out []string
	for _, id := range []string{t.OfferID, t.Name} {
		id = escapeQuotes(id)
		if id == "" {
			continue
		}
		out = append(out,
			fmt.Sprintf(`[%s^="%s"]`, idAttr, id),
			fmt.Sprintf(`[%s*="%s"]`, idAttr, id),
		)
	}
	return out
}

// hrefCandidates builds anchor matches from the destination URL: the full
// URL, then just its hostname as a weaker signal.
func hrefCandidates(dest string) []string {
	if dest == "" {
		return nil
	}
	out := []string{fmt.Sprintf(`a[href="%s"]`, escapeQuotes(dest))}
	if u, err := url.Parse(dest); err == nil && u.Hostname() != "" {
		out = append(out, fmt.Sprintf(`a[href*="%s"]`, escapeQuotes(u.Hostname())))
	}
	return out
}

// genericFallbacks is the fixed tail of every candidate list.
func genericFallbacks() []string {
	return []string{
		pointLinkClass + ":not(.contentContainer " + pointLinkClass + ")",
		pointLinkClass,
		"a.ds-card-sec",
		"[" + idAttr + "] " + pointLinkClass,
		"[" + idAttr + "]",
	}
}

// scanCardAncestors collects identifier values of card ancestors that wrap
// a clickable point element and match the daily/gamification family. Each
// distinct ancestor id becomes one candidate scoped to that ancestor.
func (r *Resolver) scanCardAncestors(page pw.Page) []string {
	raw, err := page.Evaluate(`() => {
		const ids = [];
		document.querySelectorAll('` + pointLinkClass + `').forEach((el) => {
			const card = el.closest('[` + idAttr + `]');
			if (!card) return;
			const id = card.getAttribute('` + idAttr + `') || '';
			if (id) ids.push(id);
		});
		return ids;
	}`)
	if err != nil {
		r.log.Warnf("card ancestor scan failed: %v", err)
		return nil
	}
	return CandidatesFromCardIDs(toStrings(raw))
}

// CandidatesFromCardIDs filters scanned ancestor ids through the card
// family recognizer and scopes one candidate per distinct id.
func CandidatesFromCardIDs(ids []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if id == "" || seen[id] || !cardIDPattern.MatchString(id) {
			continue
		}
		seen[id] = true
		out = append(out, fmt.Sprintf(`[%s="%s"] %s`, idAttr, escapeQuotes(id), pointLinkClass))
	}
	return out
}

type titleMatch struct {
	cardID string
	href   string
}

// scanByTitle finds elements whose visible text contains the activity
// title and yields candidates scoped to their identifier-bearing ancestor,
// plus an anchor-href candidate when the match is a link.
func (r *Resolver) scanByTitle(page pw.Page, title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	raw, err := page.Evaluate(`(title) => {
		const needle = title.toLowerCase();
		const out = [];
		document.querySelectorAll('a, span, div, h3, p').forEach((el) => {
			const text = (el.textContent || '').toLowerCase();
			if (!text.includes(needle)) return;
			const card = el.closest('[`+idAttr+`]');
			out.push({
				cardId: card ? (card.getAttribute('`+idAttr+`') || '') : '',
				href: el.tagName === 'A' ? (el.getAttribute('href') || '') : '',
			});
		});
		return out;
	}`, title)
	if err != nil {
		r.log.Warnf("title scan for %q failed: %v", title, err)
		return nil
	}
	return candidatesFromTitleMatches(parseTitleMatches(raw))
}

func candidatesFromTitleMatches(matches []titleMatch) []string {
	var out []string
	for _, m := range matches {
		if m.cardID != "" {
			out = append(out, fmt.Sprintf(`[%s="%s"] %s`, idAttr, escapeQuotes(m.cardID), pointLinkClass))
		}
		if m.href != "" {
			out = append(out, fmt.Sprintf(`a[href="%s"]`, escapeQuotes(m.href)))
		}
	}
	return out
}

func parseTitleMatches(raw interface{}) []titleMatch {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []titleMatch
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, titleMatch{
			cardID: asString(m["cardId"]),
			href:   asString(m["href"]),
		})
	}
	return out
}

func toStrings(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// escapeQuotes neutralizes untrusted text embedded in attribute selectors.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
