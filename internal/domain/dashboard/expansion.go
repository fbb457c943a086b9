package dashboard

import "fmt"

// ExpansionPolicy decides what happens to expanded rows when a list feed
// merges a new result.
type ExpansionPolicy string

const (
	// ExpansionPreserve keeps rows expanded when their key is still present.
	ExpansionPreserve ExpansionPolicy = "preserve"
	// ExpansionCollapse starts every merged list fully collapsed.
	ExpansionCollapse ExpansionPolicy = "collapse"
)

// ParseExpansionPolicy validates a configured policy; empty means preserve.
func ParseExpansionPolicy(s string) (ExpansionPolicy, error) {
	switch ExpansionPolicy(s) {
	case "", ExpansionPreserve:
		return ExpansionPreserve, nil
	case ExpansionCollapse:
		return ExpansionCollapse, nil
	}
	return "", fmt.Errorf("unknown expansion policy %q", s)
}

func expandedKeys[T any](items []T, key func(*T) string, ui func(*T) *ItemUI) map[string]bool {
	out := make(map[string]bool)
	for i := range items {
		if ui(&items[i]).Expanded {
			out[key(&items[i])] = true
		}
	}
	return out
}

// carry marks rows of next expanded when the same key was expanded in prev.
// next is freshly normalized and not yet published, so it is updated in place.
func carry[T any](prev, next []T, key func(*T) string, ui func(*T) *ItemUI) {
	open := expandedKeys(prev, key, ui)
	if len(open) == 0 {
		return
	}
	for i := range next {
		if open[key(&next[i])] {
			ui(&next[i]).Expanded = true
		}
	}
}

func orderKey(o *Order) string               { return o.ID }
func orderUI(o *Order) *ItemUI               { return &o.UI }
func quoteKey(q *Quote) string               { return q.ID }
func quoteUI(q *Quote) *ItemUI               { return &q.UI }
func subscriptionKey(s *Subscription) string { return s.Key }
func subscriptionUI(s *Subscription) *ItemUI { return &s.UI }
func campaignKey(c *Campaign) string         { return c.Key }
func campaignUI(c *Campaign) *ItemUI         { return &c.UI }
func sendKey(s *Send) string                 { return s.Key }
func sendUI(s *Send) *ItemUI                 { return &s.UI }
func returnKey(r *Return) string             { return r.ID }
func returnUI(r *Return) *ItemUI             { return &r.UI }

func carryCampaigns(prev, next []Campaign) {
	carry(prev, next, campaignKey, campaignUI)
	byKey := make(map[string][]Send, len(prev))
	for _, c := range prev {
		byKey[c.Key] = c.Sends
	}
	for i := range next {
		if old, ok := byKey[next[i].Key]; ok {
			carry(old, next[i].Sends, sendKey, sendUI)
		}
	}
}
