package validation

import (
	"strings"

	"github.com/wolfeidau/classdesk/internal/models"
)

// ValidateEmail requires a non-blank, well formed address.
func ValidateEmail(email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Please enter an email address")
	}
	if !checkVar(email, "email") {
		return invalid("Please enter a valid email address")
	}
	return ok()
}

// ValidatePhone accepts an empty value; otherwise it must be an 11 digit mobile number.
func ValidatePhone(phone string) Result {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ok()
	}
	if !mobilePattern.MatchString(phone) {
		return invalid("Please enter a valid mobile number")
	}
	return ok()
}

// ProfileComplete reports whether every field shown on the profile page is present.
func ProfileComplete(p *models.Profile) bool {
	if p == nil {
		return false
	}
	for _, v := range []string{p.Username, p.RealName, p.Email, p.Role, p.UserCode, p.CreatedAt} {
		if v == "" {
			return false
		}
	}
	return true
}

// AvatarURL returns the avatar to display, or "" when the placeholder should be shown.
func AvatarURL(avatar *string) string {
	if avatar == nil || strings.TrimSpace(*avatar) == "" {
		return ""
	}
	return *avatar
}

func ShouldShowDefaultAvatar(avatar *string) bool {
	return AvatarURL(avatar) == ""
}
