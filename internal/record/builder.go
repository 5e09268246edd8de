// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/prebid/openrtb/v20/adcom1"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"

	"github.com/aletheia-ads/transparency/internal/canonical"
)

// timestampLayout is ISO-8601 with millisecond precision, always UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Build derives the immutable AuctionRow and CandidateRows from an
// observed auction. Missing or unmapped inputs fall back to their
// documented defaults; Build never panics on a partial Observation.
// The returned row is unsigned: IntegrityKeyID and IntegritySignature
// are filled in by the caller after signing.
func Build(obs Observation, now time.Time, feeBp, sampleBps int) (AuctionRow, []CandidateRow) {
	ranked := rankBids(obs.Bids)
	winner := resolveWinner(obs, ranked)

	row := AuctionRow{
		AuctionID:               obs.AuctionID,
		Timestamp:               now.UTC().Format(timestampLayout),
		PublisherID:             PublisherID(obs.Request),
		AppOrSiteID:             appOrSiteID(obs.Request),
		PlacementID:             placementID(obs.Request),
		SurfaceType:             surfaceType(obs.Request),
		DeviceOS:                deviceOS(obs.Request),
		DeviceGeo:               deviceGeo(obs.Request),
		ATTStatus:               attStatus(obs.Request),
		TCStringSHA256:          consentHash(obs.Request),
		WinnerSource:            winner.source,
		WinnerBidECPM:           winner.bidECPM,
		WinnerGrossPrice:        winner.grossPrice,
		WinnerCurrency:          winner.currency,
		WinnerReason:            winner.reason,
		FeeBp:                   int32(feeBp),
		SampleBps:               int32(sampleBps),
		EffectivePublisherShare: round6(1 - float64(feeBp)/10000),
		IntegrityAlgo:           IntegrityAlgoEd25519,
	}

	cands := make([]CandidateRow, 0, len(ranked))
	for i, b := range ranked {
		status := StatusNoBid
		if winner.exists {
			status = StatusLoss
			if i == 0 {
				status = StatusWinner
			}
		}
		cands = append(cands, CandidateRow{
			AuctionID:      obs.AuctionID,
			Seq:            uint16(i),
			Source:         b.Source,
			BidECPM:        round6(b.PriceCPM),
			Currency:       b.Currency,
			ResponseTimeMs: b.ResponseTimeMs,
			Status:         status,
			MetadataHash:   metadataHash(b),
		})
	}
	return row, cands
}

// PublisherID resolves the publisher from an app or site request.
// Returns "" when no publisher can be resolved, which the writer treats
// as unsampleable.
func PublisherID(req *openrtb2.BidRequest) string {
	if req == nil {
		return ""
	}
	if req.App != nil && req.App.Publisher != nil {
		return req.App.Publisher.ID
	}
	if req.Site != nil && req.Site.Publisher != nil {
		return req.Site.Publisher.ID
	}
	return ""
}

type winnerResolution struct {
	exists     bool
	source     string
	bidECPM    float64
	grossPrice float64
	currency   string
	reason     string
}

// resolveWinner applies second-price clearing: the winner pays
// max(floor, second bid + one cent), pays max(floor, own bid) when
// unopposed, and pays nothing when the auction did not succeed.
func resolveWinner(obs Observation, ranked []Bid) winnerResolution {
	res := winnerResolution{reason: ReasonNoFill}
	if obs.NoBidReason != "" {
		res.reason = obs.NoBidReason
	}
	if len(ranked) == 0 {
		return res
	}

	top := ranked[0]
	floor := bidFloor(obs.Request)
	res.source = top.Source
	res.bidECPM = round6(top.PriceCPM)
	res.currency = top.Currency

	if !obs.Succeeded {
		res.grossPrice = 0
		return res
	}

	res.exists = true
	if len(ranked) > 1 {
		second := ranked[1].PriceCPM + 0.01
		if floor > second {
			res.grossPrice = round6(floor)
			res.reason = ReasonFloor
		} else {
			res.grossPrice = round6(second)
			res.reason = ReasonSecondPrice
		}
		return res
	}

	if floor > top.PriceCPM {
		res.grossPrice = round6(floor)
		res.reason = ReasonFloor
	} else {
		res.grossPrice = round6(top.PriceCPM)
		res.reason = ReasonOnlyBid
	}
	return res
}

func rankBids(bids []Bid) []Bid {
	ranked := make([]Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PriceCPM > ranked[j].PriceCPM
	})
	return ranked
}

func bidFloor(req *openrtb2.BidRequest) float64 {
	if req == nil || len(req.Imp) == 0 {
		return 0
	}
	return req.Imp[0].BidFloor
}

func appOrSiteID(req *openrtb2.BidRequest) string {
	if req == nil {
		return ""
	}
	if req.App != nil {
		return req.App.ID
	}
	if req.Site != nil {
		return req.Site.ID
	}
	return ""
}

func placementID(req *openrtb2.BidRequest) string {
	if req == nil || len(req.Imp) == 0 {
		return ""
	}
	return req.Imp[0].TagID
}

func surfaceType(req *openrtb2.BidRequest) string {
	if req == nil {
		return SurfaceMobileApp
	}
	// CTV apps still carry an App object, so the device type wins.
	if req.Device != nil {
		switch req.Device.DeviceType {
		case adcom1.DeviceTV, adcom1.DeviceSetTopBox:
			return SurfaceCTV
		}
	}
	if req.Site != nil {
		return SurfaceWeb
	}
	return SurfaceMobileApp
}

func deviceOS(req *openrtb2.BidRequest) string {
	if req == nil || req.Device == nil || req.Device.OS == "" {
		return "unknown"
	}
	return strings.ToLower(req.Device.OS)
}

func deviceGeo(req *openrtb2.BidRequest) string {
	if req == nil || req.Device == nil || req.Device.Geo == nil {
		return "ZZ"
	}
	country := strings.ToUpper(strings.TrimSpace(req.Device.Geo.Country))
	if len(country) != 2 {
		return "ZZ"
	}
	return country
}

// attStatus maps the numeric ATT enum carried in device ext ("atts").
func attStatus(req *openrtb2.BidRequest) string {
	if req == nil || req.Device == nil || len(req.Device.Ext) == 0 {
		return ATTUnknown
	}
	var ext struct {
		ATTS *int `json:"atts"`
	}
	if err := json.Unmarshal(req.Device.Ext, &ext); err != nil || ext.ATTS == nil {
		return ATTUnknown
	}
	switch *ext.ATTS {
	case 0:
		return ATTNotDetermined
	case 1:
		return ATTRestricted
	case 2:
		return ATTDenied
	case 3:
		return ATTAuthorized
	default:
		return ATTUnknown
	}
}

// consentHash hashes the raw consent string; absence yields the fixed
// all-zero sentinel rather than null or empty.
func consentHash(req *openrtb2.BidRequest) string {
	consent := rawConsent(req)
	if consent == "" {
		return ZeroConsentHash
	}
	sum := sha256.Sum256([]byte(consent))
	return hex.EncodeToString(sum[:])
}

func rawConsent(req *openrtb2.BidRequest) string {
	if req == nil || req.User == nil {
		return ""
	}
	if req.User.Consent != "" {
		return req.User.Consent
	}
	if len(req.User.Ext) == 0 {
		return ""
	}
	var ext struct {
		Consent string `json:"consent"`
	}
	if err := json.Unmarshal(req.User.Ext, &ext); err != nil {
		return ""
	}
	return ext.Consent
}

// metadataHash fingerprints creative metadata over its canonical form.
func metadataHash(b Bid) string {
	adomain := make([]any, len(b.ADomain))
	for i, d := range b.ADomain {
		adomain[i] = d
	}
	c := canonical.Canonicalize(map[string]any{
		"adomain": adomain,
		"cid":     b.CID,
		"crid":    b.CRID,
		"bundle":  b.Bundle,
	})
	sum := sha256.Sum256([]byte(c))
	return hex.EncodeToString(sum[:])
}

// round6 rounds to 6 decimal places, half away from zero, before any
// monetary value is stored.
func round6(v float64) float64 {
	return decimal.NewFromFloat(v).Round(6).InexactFloat64()
}
