package models

import "errors"

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrNoBidsPlaced       = errors.New("no bids placed")
	ErrCompanyRequired    = errors.New("company name is required")
	ErrInvalidBid         = errors.New("invalid bid amount")
	ErrAlreadySubmitted   = errors.New("bids already submitted")
	ErrSubmitInProgress   = errors.New("submission already in progress")
	ErrGatewayUnavailable = errors.New("spreadsheet service unavailable")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrEnrichment         = errors.New("listing enrichment failed")
)
