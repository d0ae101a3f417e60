// Package errors provides classified error primitives used across docmeld.
//
// A ClassifiedError carries a category, a severity, structured context and an
// optional cause. Packages keep their own sentinel errors and wrap them with
// WrapError so that callers can still match on the sentinel with errors.Is,
// while the CLI maps the category to an exit code.
//
// Example usage:
//
//	err := errors.WrapError(config.ErrTargetRedefinition, errors.CategoryConfig, "target defined twice").
//		WithContext("target", name).
//		WithContext("first", firstPath).
//		Fatal().
//		Build()
package errors
