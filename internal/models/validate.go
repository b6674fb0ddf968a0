package models

import (
	"regexp"
	"strings"
)

// phoneRe accepts an optional leading + followed by 7 to 15 digits, the
// format the submission form collects for follow-up calls.
var phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// emailRe is a light sanity check, not full RFC validation.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks a citizen report submission. The caller is expected to have
// already stored the proof image and set ImageURL.
func (s *ReportSubmission) Validate() error {
	fields := map[string]string{}

	phone := strings.TrimSpace(s.ReporterPhone)
	if phone == "" {
		fields["reporter_phone"] = "phone number is required for follow-up"
	} else if !phoneRe.MatchString(phone) {
		fields["reporter_phone"] = "phone number must be 7-15 digits, optionally prefixed with +"
	}
	if strings.TrimSpace(s.Description) == "" {
		fields["description"] = "a brief description of the waste is required"
	}
	if strings.TrimSpace(s.LocationName) == "" {
		fields["location_name"] = "a specific location name or landmark is required"
	}
	if strings.TrimSpace(s.LocationState) == "" {
		fields["location_state"] = "the state or area is required"
	}
	if strings.TrimSpace(s.LocationCity) == "" {
		fields["location_city"] = "the local government area or city is required"
	}
	if strings.TrimSpace(s.ImageURL) == "" {
		fields["image"] = "an image proof of the waste pile is required"
	}

	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// Validate checks an admin registration.
func (r *AdminRegistration) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Username) == "" {
		fields["username"] = "username is required"
	}
	if !emailRe.MatchString(strings.TrimSpace(r.Email)) {
		fields["email"] = "a valid email address is required"
	}
	if len(r.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// Validate checks a driver registration, which bundles truck details.
func (r *DriverRegistration) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Username) == "" {
		fields["username"] = "username is required"
	}
	if !emailRe.MatchString(strings.TrimSpace(r.Email)) {
		fields["email"] = "a valid email address is required"
	}
	if len(r.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if strings.TrimSpace(r.LicensePlate) == "" {
		fields["license_plate"] = "license plate is required"
	}
	if r.CapacityTons <= 0 {
		fields["capacity_tons"] = "truck capacity must be a positive number of tons"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}
