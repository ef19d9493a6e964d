package http

import (
	"encoding/json"
	"net/http"
)

// PaginatedResponse wraps a page of results with the metadata needed to
// fetch subsequent pages.
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int32       `json:"page"`
	Limit int32       `json:"limit"`
}

// DataResponse wraps a single resource.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
