// Package activities implements the activity completion engine: the data
// model for promotional activities, the type classifier, and the
// orchestrator that drives them to completion on a live dashboard page.
package activities

import "strings"

// Activity is one completable promotional item as parsed from dashboard
// data. The engine consumes activities read-only and never mutates them.
type Activity struct {
	Title                        string `json:"title"`
	OfferID                      string `json:"offerId"`
	Name                         string `json:"name"`
	Complete                     bool   `json:"complete"`
	PointProgressMax             int    `json:"pointProgressMax"`
	PromotionType                string `json:"promotionType"`
	DestinationURL               string `json:"destinationUrl"`
	ExclusiveLockedFeatureStatus string `json:"exclusiveLockedFeatureStatus"`
}

// Eligible reports whether the activity is worth attempting at all:
// incomplete, rewarded, and not locked behind an exclusive feature.
func (a Activity) Eligible() bool {
	return !a.Complete && a.PointProgressMax > 0 &&
		a.ExclusiveLockedFeatureStatus != "locked"
}

// PunchCard is a parent promotion gating an ordered set of child
// activities. Children are solved against a page already navigated to the
// parent's destination.
type PunchCard struct {
	ParentPromotion Activity   `json:"parentPromotion"`
	ChildPromotions []Activity `json:"childPromotions"`
}

// Uncompleted reports whether the card still has work left.
func (p PunchCard) Uncompleted() bool {
	return !p.ParentPromotion.Complete
}

// Kind is the closed set of activity flavours the engine dispatches on.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPoll
	KindAbc
	KindThisOrThat
	KindQuiz
	KindSearchOnBing
	KindURLReward
)

func (k Kind) String() string {
	switch k {
	case KindPoll:
		return "poll"
	case KindAbc:
		return "abc"
	case KindThisOrThat:
		return "this-or-that"
	case KindQuiz:
		return "quiz"
	case KindSearchOnBing:
		return "search-on-bing"
	case KindURLReward:
		return "url-reward"
	default:
		return "unsupported"
	}
}

// Classify maps an activity onto its handler kind. The checks are order
// sensitive: quiz sub-variants are told apart by point value and
// destination-URL hints before the generic quiz bucket, and url rewards by
// name hints before the generic visit bucket.
func Classify(a Activity) Kind {
	promo := strings.ToLower(a.PromotionType)
	name := strings.ToLower(a.Name)
	dest := strings.ToLower(a.DestinationURL)

	switch {
	case strings.Contains(promo, "quiz"):
		switch {
		case a.PointProgressMax == 10 && strings.Contains(dest, "pollscenarioid"):
			return KindPoll
		case a.PointProgressMax == 10:
			return KindAbc
		case a.PointProgressMax == 50:
			return KindThisOrThat
		default:
			return KindQuiz
		}
	case strings.Contains(promo, "urlreward"):
		if strings.Contains(name, "exploreonbing") || strings.Contains(dest, "bing.com/search") {
			return KindSearchOnBing
		}
		return KindURLReward
	default:
		return KindUnsupported
	}
}
