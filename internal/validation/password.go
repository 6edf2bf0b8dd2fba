package validation

// MinPasswordLength is the shortest password the backend accepts.
const MinPasswordLength = 6

// ValidatePasswordMatch checks the confirmation field of a password change form.
func ValidatePasswordMatch(newPassword, confirmPassword string) Result {
	if confirmPassword == "" {
		return invalid("Please confirm the new password")
	}
	if newPassword != confirmPassword {
		return invalid("The two passwords do not match")
	}
	return ok()
}

func IsValidPasswordLength(password string, minLength int) bool {
	if minLength <= 0 {
		minLength = MinPasswordLength
	}
	return len([]rune(password)) >= minLength
}

// StrengthStatus is the visual state of a strength meter.
type StrengthStatus string

const (
	StatusException StrengthStatus = "exception"
	StatusNormal    StrengthStatus = "normal"
	StatusSuccess   StrengthStatus = "success"
)

// Strength grades a password on a 0-4 scale.
type Strength struct {
	Score   int
	Percent int
	Label   string
	Status  StrengthStatus
}

var strengthLevels = [...]Strength{
	{Score: 0, Percent: 10, Label: "very weak", Status: StatusException},
	{Score: 1, Percent: 25, Label: "weak", Status: StatusException},
	{Score: 2, Percent: 50, Label: "fair", Status: StatusNormal},
	{Score: 3, Percent: 75, Label: "strong", Status: StatusNormal},
	{Score: 4, Percent: 100, Label: "very strong", Status: StatusSuccess},
}

// PasswordStrength awards a point for each length threshold (6, 8, 12) and each character
// class present, then halves the total into the 0-4 range. Seven points is the most a
// password can earn, so in practice the top grade is 3. An empty password scores zero
// with no label.
func PasswordStrength(password string) Strength {
	if password == "" {
		return Strength{Status: StatusNormal}
	}

	points := 0
	n := len([]rune(password))
	for _, threshold := range []int{6, 8, 12} {
		if n >= threshold {
			points++
		}
	}

	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	for _, present := range []bool{lower, upper, digit, other} {
		if present {
			points++
		}
	}

	return strengthLevels[min(4, points/2)]
}
