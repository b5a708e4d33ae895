// Package geo provides pure great-circle math relating two coordinates.
//
// DistanceMeters computes the haversine distance on a spherical Earth,
// InitialBearingDegrees the forward azimuth, and CompassOctant the
// human-readable eight-point direction. Unknown coordinates (the zero
// sentinel or out-of-range values) yield zero results instead of errors so
// callers on the hot path never block on bad input.
package geo
