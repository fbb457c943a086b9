package dashboard

import "github.com/ehr/patient360/pkg/pagination"

// PageView is one entry of the paginator window.
type PageView struct {
	Number int    `json:"number"`
	Class  string `json:"class"`
}

// Paginator is the derived pagination state of the active tab.
type Paginator struct {
	TotalItems     int        `json:"total_items"`
	ItemsPerPage   int        `json:"items_per_page"`
	TotalPages     int        `json:"total_pages"`
	CurrentPage    int        `json:"current_page"`
	ShowPagination bool       `json:"show_pagination"`
	Pages          []PageView `json:"pages"`
	IsFirstPage    bool       `json:"is_first_page"`
	IsLastPage     bool       `json:"is_last_page"`
	PageStart      int        `json:"page_start"`
	PageEnd        int        `json:"page_end"`
}

type TabView struct {
	Tab    Tab    `json:"tab"`
	Active bool   `json:"active"`
	Class  string `json:"class"`
	Count  int    `json:"count"`
}

type SectionView struct {
	Section      Section `json:"section"`
	Open         bool    `json:"open"`
	Icon         string  `json:"icon"`
	IconClass    string  `json:"icon_class"`
	ContentClass string  `json:"content_class"`
}

// Presence flags are true iff the backing collection is non-empty.
type Presence struct {
	HasOrders          bool `json:"has_orders"`
	HasAppointments    bool `json:"has_appointments"`
	HasQuotes          bool `json:"has_quotes"`
	HasSubscriptions   bool `json:"has_subscriptions"`
	HasCampaigns       bool `json:"has_campaigns"`
	HasReturns         bool `json:"has_returns"`
	HasMedicalHistory  bool `json:"has_medical_history"`
	HasDiagnoses       bool `json:"has_diagnoses"`
	HasVisualDriver    bool `json:"has_visual_driver"`
	HasPowerQuestions  bool `json:"has_power_questions"`
	HasPrescriptions   bool `json:"has_prescriptions"`
	HasFamilyRelations bool `json:"has_family_relations"`
}

// Derived is recomputed from the model and interaction state on every read.
type Derived struct {
	Pagination Paginator     `json:"pagination"`
	Tabs       []TabView     `json:"tabs"`
	Sections   []SectionView `json:"sections"`
	Presence   Presence      `json:"presence"`
}

func derive(m *Model, in Interaction, perPage int) Derived {
	total := tabItems(m, in.ActiveTab)
	p := pagination.New(in.CurrentPage, perPage, total)

	pages := make([]PageView, len(p.Pages))
	for i, n := range p.Pages {
		class := "pagination-number"
		if n == p.Current {
			class += " active"
		}
		pages[i] = PageView{Number: n, Class: class}
	}

	tabs := make([]TabView, len(Tabs))
	for i, t := range Tabs {
		class := "tab-button"
		if t == in.ActiveTab {
			class += " active"
		}
		tabs[i] = TabView{Tab: t, Active: t == in.ActiveTab, Class: class, Count: tabItems(m, t)}
	}

	sections := make([]SectionView, len(Sections))
	for i, s := range Sections {
		ui := ItemUI{Expanded: in.Sections[s], block: "capsule-content"}
		sections[i] = SectionView{
			Section:      s,
			Open:         ui.Expanded,
			Icon:         ui.ChevronIcon(),
			IconClass:    ui.ChevronClass(),
			ContentClass: ui.DetailsClass(),
		}
	}

	return Derived{
		Pagination: Paginator{
			TotalItems:     p.TotalItems,
			ItemsPerPage:   p.PerPage,
			TotalPages:     p.TotalPages,
			CurrentPage:    p.Current,
			ShowPagination: p.Show,
			Pages:          pages,
			IsFirstPage:    p.Current == 1,
			IsLastPage:     p.Current == max(1, p.TotalPages),
			PageStart:      p.Start,
			PageEnd:        p.End,
		},
		Tabs:     tabs,
		Sections: sections,
		Presence: Presence{
			HasOrders:          len(m.Orders) > 0,
			HasAppointments:    len(m.Appointments) > 0,
			HasQuotes:          len(m.Quotes) > 0,
			HasSubscriptions:   len(m.Subscriptions) > 0,
			HasCampaigns:       len(m.Campaigns) > 0,
			HasReturns:         len(m.Returns) > 0,
			HasMedicalHistory:  len(m.Medical.History) > 0,
			HasDiagnoses:       len(m.Medical.Diagnoses) > 0,
			HasVisualDriver:    len(m.Medical.VisualDrivers) > 0,
			HasPowerQuestions:  len(m.Medical.PowerQuestions) > 0,
			HasPrescriptions:   len(m.Medical.Prescriptions) > 0,
			HasFamilyRelations: len(m.Medical.FamilyRelations) > 0,
		},
	}
}
