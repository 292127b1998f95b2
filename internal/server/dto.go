package server

import "sellerbooks/internal"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type PlatformInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	SkipTax  bool   `json:"skipTax"`
}

type HistoryEntry struct {
	RunID      string                    `json:"runId"`
	DocumentID int                       `json:"documentId"`
	Document   string                    `json:"document"`
	CreatedAt  string                    `json:"createdAt"`
	Result     internal.ExtractionResult `json:"result"`
}
