package models

import "strconv"

// Column titles shared by the units, bid_units and submissions sheets.
const (
	ColUnitCode   = "Unit_Code"
	ColAddress    = "Address"
	ColArea       = "Area"
	ColOrder      = "Order"
	ColListingURL = "Listing_URL"
	ColCommunity  = "Community"
	ColBidID      = "Bid_ID"
	ColCompany    = "Company"
	ColBid        = "Bid"
	ColTimestamp  = "Timestamp"
)

// Unit is a rentable property from the units sheet.
type Unit struct {
	Code       string `json:"unit_code"`
	Address    string `json:"address"`
	Area       string `json:"area"`
	Order      int    `json:"order"`
	ListingURL string `json:"listing_url"`
	Community  string `json:"community"`
}

// BidRequest marks a unit as open for bidding in a batch. Extra holds the
// remaining sheet columns, in sheet order, for display to the vendor.
type BidRequest struct {
	UnitCode string `json:"unit_code"`
	BidID    string `json:"bid_id,omitempty"`
	Extra    Record `json:"extra"`
}

// Row is one right-join result of a bid request and its unit. Unit is nil
// when the units sheet has no matching code.
type Row struct {
	Request BidRequest      `json:"request"`
	Unit    *Unit           `json:"unit"`
	Listing *ListingDetails `json:"listing,omitempty"`
}

func (r Row) UnitCode() string {
	return r.Request.UnitCode
}

func (r Row) Area() string {
	if r.Unit == nil {
		return ""
	}
	return r.Unit.Area
}

// Address falls back to the unit code when the unit record is missing.
func (r Row) Address() string {
	if r.Unit == nil || r.Unit.Address == "" {
		return r.Request.UnitCode
	}
	return r.Unit.Address
}

func (r Row) ListingURL() string {
	if r.Unit == nil {
		return ""
	}
	return r.Unit.ListingURL
}

// UnitFromRecord types a units sheet row.
func UnitFromRecord(rec Record) Unit {
	order, _ := strconv.Atoi(rec.String(ColOrder))
	return Unit{
		Code:       rec.String(ColUnitCode),
		Address:    rec.String(ColAddress),
		Area:       rec.String(ColArea),
		Order:      order,
		ListingURL: rec.String(ColListingURL),
		Community:  rec.String(ColCommunity),
	}
}

// BidRequestFromRecord types a bid_units sheet row.
func BidRequestFromRecord(rec Record) BidRequest {
	req := BidRequest{
		UnitCode: rec.String(ColUnitCode),
		BidID:    rec.String(ColBidID),
	}
	for _, c := range rec {
		if c.Column == ColUnitCode || c.Column == ColBidID {
			continue
		}
		req.Extra = append(req.Extra, c)
	}
	return req
}
