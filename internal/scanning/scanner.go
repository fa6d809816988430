package scanning

import "context"

// RawReceipt is recognizer output before normalization: an object with an
// "items" list and optional receipt-level fields, numbers possibly as strings
type RawReceipt map[string]any

// Scanner defines the interface for receipt recognition
type Scanner interface {
	// ScanReceipt reads a receipt image/PDF and returns the raw item data
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (RawReceipt, error)
	// Close closes the scanner and releases resources
	Close() error
}
