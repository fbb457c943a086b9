package dashboard

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ehr/patient360/pkg/pagination"
)

// Interaction is local view state that no feed writes: the active tab, the
// current page and the open medical record sections. Row expansion lives
// on the rows themselves (ItemUI).
type Interaction struct {
	ActiveTab   Tab              `json:"active_tab"`
	CurrentPage int              `json:"current_page"`
	Sections    map[Section]bool `json:"sections"`
}

func newInteraction() Interaction {
	return Interaction{
		ActiveTab:   InitialTab,
		CurrentPage: 1,
		Sections:    make(map[Section]bool, len(Sections)),
	}
}

func (in Interaction) clone() Interaction {
	in.Sections = maps.Clone(in.Sections)
	return in
}

// tabItems is the number of rows backing tab. The record tab has none.
func tabItems(m *Model, tab Tab) int {
	switch tab {
	case TabOrders:
		return len(m.Orders)
	case TabAppointments:
		return len(m.Appointments)
	case TabQuotes:
		return len(m.Quotes)
	case TabSubscriptions:
		return len(m.Subscriptions)
	case TabCampaigns:
		return len(m.Campaigns)
	case TabReturns:
		return len(m.Returns)
	}
	return 0
}

func (in *Interaction) totalPages(m *Model, perPage int) int {
	return pagination.TotalPages(tabItems(m, in.ActiveTab), perPage)
}

// clampPage re-applies the page bounds after anything that can shrink the
// active tab's list.
func (in *Interaction) clampPage(m *Model, perPage int) {
	in.CurrentPage = pagination.Clamp(in.CurrentPage, in.totalPages(m, perPage))
}

func (in *Interaction) setActiveTab(tab Tab) error {
	if !validTab(tab) {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	in.ActiveTab = tab
	in.CurrentPage = 1
	return nil
}

func (in *Interaction) setPage(m *Model, perPage, page int) {
	in.CurrentPage = pagination.Clamp(page, in.totalPages(m, perPage))
}

func (in *Interaction) toggleSection(s Section) (bool, error) {
	if !slices.Contains(Sections, s) {
		return false, fmt.Errorf("%w: %q", ErrUnknownSection, s)
	}
	next := maps.Clone(in.Sections)
	if next == nil {
		next = make(map[Section]bool, len(Sections))
	}
	next[s] = !next[s]
	in.Sections = next
	return next[s], nil
}

// flip copies items and toggles the row whose key matches. The original
// slice is left untouched so published snapshots stay valid.
func flip[T any](items []T, key string, keyOf func(*T) string, ui func(*T) *ItemUI) ([]T, bool, error) {
	for i := range items {
		if keyOf(&items[i]) != key {
			continue
		}
		next := slices.Clone(items)
		u := ui(&next[i])
		u.Expanded = !u.Expanded
		return next, u.Expanded, nil
	}
	return nil, false, fmt.Errorf("%w: %q", ErrUnknownItem, key)
}

// toggleExpanded flips exactly one row of the named list. Sends are
// addressed by their campaign key in parent.
func toggleExpanded(m *Model, list ListName, key, parent string) (bool, error) {
	var (
		expanded bool
		err      error
	)
	switch list {
	case ListOrders:
		var next []Order
		if next, expanded, err = flip(m.Orders, key, orderKey, orderUI); err == nil {
			m.Orders = next
		}
	case ListQuotes:
		var next []Quote
		if next, expanded, err = flip(m.Quotes, key, quoteKey, quoteUI); err == nil {
			m.Quotes = next
		}
	case ListSubscriptions:
		var next []Subscription
		if next, expanded, err = flip(m.Subscriptions, key, subscriptionKey, subscriptionUI); err == nil {
			m.Subscriptions = next
		}
	case ListCampaigns:
		var next []Campaign
		if next, expanded, err = flip(m.Campaigns, key, campaignKey, campaignUI); err == nil {
			m.Campaigns = next
		}
	case ListReturns:
		var next []Return
		if next, expanded, err = flip(m.Returns, key, returnKey, returnUI); err == nil {
			m.Returns = next
		}
	case ListSends:
		return toggleSend(m, parent, key)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	return expanded, err
}

func toggleSend(m *Model, campaign, key string) (bool, error) {
	idx := slices.IndexFunc(m.Campaigns, func(c Campaign) bool { return c.Key == campaign })
	if idx < 0 {
		return false, fmt.Errorf("%w: campaign %q", ErrUnknownItem, campaign)
	}
	sends, expanded, err := flip(m.Campaigns[idx].Sends, key, sendKey, sendUI)
	if err != nil {
		return false, err
	}
	next := slices.Clone(m.Campaigns)
	next[idx].Sends = sends
	m.Campaigns = next
	return expanded, nil
}
