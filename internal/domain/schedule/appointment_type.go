package schedule

import "time"

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation" // general consultation
	TypeFollowUp     AppointmentType = "followup"
	TypePhysical     AppointmentType = "physical" // physical exam
	TypeSpecialist   AppointmentType = "specialist"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypePhysical, TypeSpecialist:
		return true
	}
	return false
}

// AllTypes lists every bookable appointment type.
func AllTypes() []AppointmentType {
	return []AppointmentType{TypeConsultation, TypeFollowUp, TypePhysical, TypeSpecialist}
}

// defaultDurations holds the authoritative visit lengths. The schedule file
// may override them, but the set of types is closed.
var defaultDurations = map[AppointmentType]time.Duration{
	TypeConsultation: 30 * time.Minute,
	TypeFollowUp:     15 * time.Minute,
	TypePhysical:     45 * time.Minute,
	TypeSpecialist:   60 * time.Minute,
}
