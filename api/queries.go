package api

import (
	"github.com/saiset-co/estate-client/types"
)

const (
	ListingStatusApproved = "APPROVED"
	ListingTypeSale       = "SALE"
	ListingTypeRent       = "RENT"

	defaultSearchLimit = 10
	minSearchLength    = 2
)

const (
	pathProperties    = "/api/v1/properties/"
	pathUserProfile   = "/api/v1/users/me/"
	pathAgentProfile  = "/api/v1/profile/agent/"
	pathClientProfile = "/api/v1/profile/client/"
	pathHistory       = "/api/v1/history/"
	pathAnalytics     = "/api/v1/analytics/agent/"
)

// PropertyQuery filters the property listing. Zero values are omitted from
// the request, except ListingStatus which defaults to APPROVED.
type PropertyQuery struct {
	ListingStatus string
	ListingType   string
	Page          int
	Limit         int
	City          string
	// Query replaces City with a free-text q parameter when set.
	Query        string
	PropertyType string
	MinTotal     *float64
	MaxTotal     *float64
}

func (q PropertyQuery) params() types.Params {
	status := q.ListingStatus
	if status == "" {
		status = ListingStatusApproved
	}

	params := types.Params{
		"listing_status": status,
		"listing_type":   optString(q.ListingType),
		"page":           optInt(q.Page),
		"limit":          optInt(q.Limit),
		"property_type":  optString(q.PropertyType),
		"min_total":      q.MinTotal,
		"max_total":      q.MaxTotal,
	}

	if q.Query != "" {
		params["q"] = q.Query
	} else {
		params["city"] = optString(q.City)
	}

	return params
}

type SearchQuery struct {
	Query         string
	Limit         int
	ListingStatus string
	ListingType   string
}

func (q SearchQuery) params() types.Params {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	status := q.ListingStatus
	if status == "" {
		status = ListingStatusApproved
	}

	return types.Params{
		"q":              q.Query,
		"limit":          limit,
		"listing_status": status,
		"listing_type":   optString(q.ListingType),
	}
}

type AnalyticsQuery struct {
	PeriodType string
	Year       int
}

func (q AnalyticsQuery) params() types.Params {
	return types.Params{
		"period_type": optString(q.PeriodType),
		"year":        optInt(q.Year),
	}
}

// optString and optInt map zero values to nil so BuildKey drops them.
func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optInt(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}
