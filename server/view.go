package server

import (
	"fmt"
	"html/template"
	"net/url"
	"strconv"

	"hk_bids/i18n"
	"hk_bids/models"
)

// AreaGroup is a run of consecutive rows that share an area. A new group
// starts wherever the area differs from the previous row.
type AreaGroup struct {
	Area string
	Rows []RowView
}

// RowView is one property in the bid form.
type RowView struct {
	Code      string
	Address   string
	Community string
	Extra     models.Record
	Listing   *models.ListingDetails
	Field     string
	Value     string
}

// GroupByArea splits rows into area runs, keeping row order. Inputs are
// named by row position since one unit can be requested in several batches.
func GroupByArea(rows []models.Row, values map[string]string) []AreaGroup {
	var groups []AreaGroup
	for i, r := range rows {
		if i == 0 || r.Area() != rows[i-1].Area() {
			groups = append(groups, AreaGroup{Area: r.Area()})
		}
		view := RowView{
			Code:    r.UnitCode(),
			Address: r.Address(),
			Extra:   r.Request.Extra,
			Listing: r.Listing,
			Field:   bidField(i),
		}
		if r.Unit != nil {
			view.Community = r.Unit.Community
		}
		if values != nil {
			view.Value = values[view.Field]
		}
		last := &groups[len(groups)-1]
		last.Rows = append(last.Rows, view)
	}
	return groups
}

func bidField(i int) string {
	return "bid_" + strconv.Itoa(i)
}

const (
	noticeWarning = "warning"
	noticeError   = "error"
	noticeSuccess = "success"
)

type pageView struct {
	L              *i18n.Locale
	Languages      []*i18n.Locale
	LanguagePrompt string
	LogoURL        string

	// link credentials carried through forms
	Auth string
	Bid  string

	Denied      bool
	Notice      string
	NoticeKind  string
	ShowCompany bool
	ShowForm    bool
	Submitted   bool

	Company    string
	Groups     []AreaGroup
	Step       string
	Submission *models.Submission
	ReceiptURL string
}

// LinkQuery rebuilds the link query for redirects and language switches.
func (v pageView) LinkQuery(lang string) template.URL {
	q := url.Values{}
	if v.Auth != "" {
		q.Set("auth", v.Auth)
	}
	if v.Bid != "" {
		q.Set("bid", v.Bid)
	}
	if lang != "" {
		q.Set("lang", lang)
	}
	return template.URL(q.Encode())
}

func formatStep(step float64) string {
	if step <= 0 {
		return "0.01"
	}
	return strconv.FormatFloat(step, 'f', 2, 64)
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"cell": models.CellString,
	"timestamp": func(b models.Bid) string {
		return b.Timestamp.Format(models.TimestampLayout)
	},
}
