package app

import "errors"

// Sentinel kinds for evaluation request errors.
var (
	ErrEmptyBatch     = errors.New("empty evaluation batch")
	ErrBatchTooLarge  = errors.New("evaluation batch exceeds the configured limit")
	ErrRaggedForecast = errors.New("forecast rows must share one length")
	ErrUnknownVariant = errors.New("unknown weighted variant")
	ErrUnknownWeight  = errors.New("unknown weight function type")
	ErrUnknownFamily  = errors.New("unknown distribution family")
	ErrLengthMismatch = errors.New("parameter length must match the batch")
)
