// Package storage is the device's secure store: a small key/value area for
// identity, credentials and configuration parameters, plus the delivery log.
//
// Items are grouped by Kind and named within their kind. Items written with
// the factory flag survive FactoryReset; everything else is erased.
//
// Failures carry a Status code (see StatusError) so callers can report the
// storage-layer reason, as the factory-reset handler does.
//
// Both Store and DeliveryLog sit on the SQLite database opened by
// internal/infrastructure/database; the schema lives in migrations/.
package storage
