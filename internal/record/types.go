// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package record defines the immutable transparency rows and derives
// them from completed auction outcomes.
package record

import (
	"errors"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// ErrNotFound is returned by row stores when an auction id has no record.
var ErrNotFound = errors.New("auction record not found")

// Analytics sink table names.
const (
	TableAuctions   = "auctions"
	TableCandidates = "auction_candidates"
)

// Surface types, derived from the request rather than client-supplied.
const (
	SurfaceMobileApp = "mobile_app"
	SurfaceWeb       = "web"
	SurfaceCTV       = "ctv"
)

// App Tracking Transparency statuses mapped from the numeric ATT enum.
const (
	ATTNotDetermined = "not_determined"
	ATTRestricted    = "restricted"
	ATTDenied        = "denied"
	ATTAuthorized    = "authorized"
	ATTUnknown       = "unknown"
)

// Candidate statuses.
const (
	StatusWinner = "winner"
	StatusLoss   = "loss"
	StatusNoBid  = "no_bid"
)

// Winner reasons.
const (
	ReasonSecondPrice = "second_price"
	ReasonFloor       = "floor"
	ReasonOnlyBid     = "only_bid"
	ReasonNoFill      = "no_fill"
)

// ZeroConsentHash is stored when no consent string was present, so the
// column is never null or empty.
const ZeroConsentHash = "0000000000000000000000000000000000000000000000000000000000000000"

// IntegrityAlgoEd25519 is the only signing algorithm currently in use.
const IntegrityAlgoEd25519 = "ed25519"

// AuctionRow is the transparency record for one sampled auction.
// Immutable once signed.
type AuctionRow struct {
	AuctionID               string  `ch:"auction_id" json:"auction_id"`
	Timestamp               string  `ch:"timestamp" json:"timestamp"`
	PublisherID             string  `ch:"publisher_id" json:"publisher_id"`
	AppOrSiteID             string  `ch:"app_or_site_id" json:"app_or_site_id"`
	PlacementID             string  `ch:"placement_id" json:"placement_id"`
	SurfaceType             string  `ch:"surface_type" json:"surface_type"`
	DeviceOS                string  `ch:"device_os" json:"device_os"`
	DeviceGeo               string  `ch:"device_geo" json:"device_geo"`
	ATTStatus               string  `ch:"att_status" json:"att_status"`
	TCStringSHA256          string  `ch:"tc_string_sha256" json:"tc_string_sha256"`
	WinnerSource            string  `ch:"winner_source" json:"winner_source"`
	WinnerBidECPM           float64 `ch:"winner_bid_ecpm" json:"winner_bid_ecpm"`
	WinnerGrossPrice        float64 `ch:"winner_gross_price" json:"winner_gross_price"`
	WinnerCurrency          string  `ch:"winner_currency" json:"winner_currency"`
	WinnerReason            string  `ch:"winner_reason" json:"winner_reason"`
	FeeBp                   int32   `ch:"aletheia_fee_bp" json:"aletheia_fee_bp"`
	SampleBps               int32   `ch:"sample_bps" json:"sample_bps"`
	EffectivePublisherShare float64 `ch:"effective_publisher_share" json:"effective_publisher_share"`
	IntegrityAlgo           string  `ch:"integrity_algo" json:"integrity_algo"`
	IntegrityKeyID          string  `ch:"integrity_key_id" json:"integrity_key_id"`
	IntegritySignature      string  `ch:"integrity_signature" json:"integrity_signature"`
}

// CandidateRow is one bid candidate of a sampled auction. Seq is the
// insertion ordinal: the signable payload depends on candidate order and
// the columnar store does not preserve it, so reads sort by Seq. Seq is
// not part of the signable projection.
type CandidateRow struct {
	AuctionID      string  `ch:"auction_id" json:"auction_id"`
	Seq            uint16  `ch:"seq" json:"seq"`
	Source         string  `ch:"source" json:"source"`
	BidECPM        float64 `ch:"bid_ecpm" json:"bid_ecpm"`
	Currency       string  `ch:"currency" json:"currency"`
	ResponseTimeMs int64   `ch:"response_time_ms" json:"response_time_ms"`
	Status         string  `ch:"status" json:"status"`
	MetadataHash   string  `ch:"metadata_hash" json:"metadata_hash"`
}

// Bid is one adapter response inside an observed auction, ranked by the
// upstream engine.
type Bid struct {
	Source         string   `json:"source"`
	PriceCPM       float64  `json:"price_cpm"`
	Currency       string   `json:"currency"`
	ResponseTimeMs int64    `json:"response_time_ms"`
	ADomain        []string `json:"adomain,omitempty"`
	CID            string   `json:"cid,omitempty"`
	CRID           string   `json:"crid,omitempty"`
	Bundle         string   `json:"bundle,omitempty"`
}

// Observation is what the auction engine hands to the transparency
// writer for each completed auction: the original bid request plus the
// ranked outcome.
type Observation struct {
	AuctionID   string               `json:"auction_id"`
	Request     *openrtb2.BidRequest `json:"request,omitempty"`
	Succeeded   bool                 `json:"succeeded"`
	Bids        []Bid                `json:"bids,omitempty"`
	NoBidReason string               `json:"no_bid_reason,omitempty"`
}
