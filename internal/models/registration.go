package models

// RegistrationStep is the stage of the onboarding sequence a user is in.
// Steps advance strictly forward through the transition table below;
// StepComplete is terminal and never reverts.
type RegistrationStep string

const (
	StepAge        RegistrationStep = "age"
	StepGender     RegistrationStep = "gender"
	StepLookingFor RegistrationStep = "looking_for"
	StepBio        RegistrationStep = "bio"
	StepComplete   RegistrationStep = "complete"
)

var stepTransitions = map[RegistrationStep]RegistrationStep{
	StepAge:        StepGender,
	StepGender:     StepLookingFor,
	StepLookingFor: StepBio,
	StepBio:        StepComplete,
}

// Next returns the step that follows s. ok is false for StepComplete
// and for values that are not part of the onboarding sequence.
func (s RegistrationStep) Next() (RegistrationStep, bool) {
	next, ok := stepTransitions[s]
	return next, ok
}

// Valid reports whether s is a known registration step.
func (s RegistrationStep) Valid() bool {
	if s == StepComplete {
		return true
	}
	_, ok := stepTransitions[s]
	return ok
}

// ParseGender maps a callback payload value to a Gender.
func ParseGender(v string) (Gender, bool) {
	switch Gender(v) {
	case GenderMale, GenderFemale, GenderOther:
		return Gender(v), true
	}
	return "", false
}

// ParsePreference maps a callback payload value to a Preference.
func ParsePreference(v string) (Preference, bool) {
	switch Preference(v) {
	case PrefMale, PrefFemale, PrefEveryone:
		return Preference(v), true
	}
	return "", false
}
