// Package fingerprint is the public API for embedding the web technology
// detection engine in another Go program, wrapping internal/detect,
// internal/ruleloader, and internal/rulelib behind a small surface: Init
// builds a Library from a rule Origin, Library.Detect runs it against one
// request's headers/URLs/body.
package fingerprint

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// Technology is one detected entry of a Result.
type Technology = rulelib.Technology

// Result is the outcome of a single Detect call.
type Result = rulelib.DetectResult
