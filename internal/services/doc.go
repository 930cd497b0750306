// Package services defines the error taxonomy and context helpers shared by
// the capture pipeline, the daemon, and the asset sink integrations.
//
// Key responsibilities:
//   - Sentinel markers plus the Wrap helper so failures keep stage context
//     while remaining classifiable with errors.Is.
//   - Typed DeviceError, FatalEncodeError, and UploadError values carrying
//     actionable hints that surface in controller events and API replies.
//   - Context helpers that stamp session IDs, stage names, and request
//     identifiers for logging.
package services
