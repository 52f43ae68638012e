// Package pipeline assembles the per-operation request pipeline.
//
// For every (path, method) pair the pipeline is built from conditionally
// included stages, always in this order:
//
//	defaults → coercion → request validation → response validation
//	→ additional middleware → handler chain → handler
//
// # Vendor Flags
//
// Stage inclusion is controlled by boolean vendor extensions that may appear
// on the document, a path item, a route module or an operation:
//
//	x-oapi-pipeline-disable-middleware                      (all four stages)
//	x-oapi-pipeline-disable-defaults-middleware
//	x-oapi-pipeline-disable-coercion-middleware
//	x-oapi-pipeline-disable-validation-middleware
//	x-oapi-pipeline-disable-response-validation-middleware
//
// A flag set to true at any level vetoes the stage; no level can re-enable a
// stage another level disabled.
//
// Operators add their own middleware with x-oapi-pipeline-additional-middleware.
// Arrays are inherited from the outer levels unless a level sets
// x-oapi-pipeline-inherit-additional-middleware to false. See
// ResolveAdditional for the exact walk.
package pipeline

// Vendor extension names.
const (
	FlagDisableMiddleware                   = "x-oapi-pipeline-disable-middleware"
	FlagDisableDefaultsMiddleware           = "x-oapi-pipeline-disable-defaults-middleware"
	FlagDisableCoercionMiddleware           = "x-oapi-pipeline-disable-coercion-middleware"
	FlagDisableValidationMiddleware         = "x-oapi-pipeline-disable-validation-middleware"
	FlagDisableResponseValidationMiddleware = "x-oapi-pipeline-disable-response-validation-middleware"
	FlagAdditionalMiddleware                = "x-oapi-pipeline-additional-middleware"
	FlagInheritAdditionalMiddleware         = "x-oapi-pipeline-inherit-additional-middleware"
)
