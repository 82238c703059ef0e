package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Collaborator errors
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("request rejected by the finance service")

	// Transaction errors
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidDate        = errors.New("invalid date, want YYYY-MM-DD")

	// Preview errors
	ErrPreviewNotEditable = errors.New("preview transactions cannot be edited, save it first")
	ErrPromotionInFlight  = errors.New("preview is already being saved")

	// Preference errors
	ErrInvalidThresholds = errors.New("thresholds must satisfy bad <= ok <= good")

	// Smart entry errors
	ErrParseFailed = errors.New("could not understand the transaction")
)
