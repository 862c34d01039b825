package recognition

// Outcome classifies the result of an identification attempt. Every
// attempt ends in exactly one outcome.
type Outcome string

const (
	// OutcomeSuccess means a face matched an enrolled identity above the
	// decision threshold.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeNoFace means the extractor found no face in the image.
	OutcomeNoFace Outcome = "NO_FACE"

	// OutcomeLowQuality means the image failed the quality gate before
	// extraction was attempted.
	OutcomeLowQuality Outcome = "LOW_QUALITY"

	// OutcomeMultipleFaces means more than one face was detected and the
	// multi-face policy rejects ambiguous inputs.
	OutcomeMultipleFaces Outcome = "MULTIPLE_FACES"

	// OutcomeNoMatch means a face was found but no enrolled identity
	// scored above the threshold.
	OutcomeNoMatch Outcome = "NO_MATCH"

	// OutcomeError means a stage failed (extractor down, index
	// unavailable, undecodable image).
	OutcomeError Outcome = "ERROR"

	// OutcomeDeniedInactive means the matched identity exists but is
	// deactivated in the directory.
	OutcomeDeniedInactive Outcome = "DENIED_INACTIVE"

	// OutcomeDeniedNoPermission means the matched identity is not allowed
	// to use face authentication.
	OutcomeDeniedNoPermission Outcome = "DENIED_NO_PERMISSION"
)

// Denied reports whether the outcome is an authorization denial. Denials
// happen after a successful biometric match.
func (o Outcome) Denied() bool {
	return o == OutcomeDeniedInactive || o == OutcomeDeniedNoPermission
}
