package api

import (
	"github.com/huyndo/tpcn-advisor/internal/advisor"
	"github.com/huyndo/tpcn-advisor/internal/catalog"
	"github.com/huyndo/tpcn-advisor/internal/retriever"
)

type askRequest struct {
	Query   string          `json:"query"`
	Profile advisor.Profile `json:"profile"`
}

type searchResponse struct {
	Results []retriever.Match `json:"results"`
	Count   int               `json:"count"`
}

type reindexResponse struct {
	Status string         `json:"status"`
	OK     bool           `json:"ok"`
	Counts catalog.Counts `json:"counts"`
}

type healthResponse struct {
	Status string `json:"status"`
}
