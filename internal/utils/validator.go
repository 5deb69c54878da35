package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

// MaxExtendDays caps a single extension.
const MaxExtendDays = 3650

// ParseCommand splits "/name@bot arg1 arg2" into its lowercase name and
// arguments. Commands addressed to another bot are rejected.
func ParseCommand(text, botUsername string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		if !strings.EqualFold(name[at+1:], botUsername) {
			return "", nil, false
		}
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// ParseDays validates the day count of an extension.
func ParseDays(s string) (int, error) {
	days, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Invalid("%q is not a number of days", s)
	}
	if days < 1 || days > MaxExtendDays {
		return 0, apperr.Invalid("days must be between 1 and %d", MaxExtendDays)
	}
	return days, nil
}

// ParseBirthdate parses a Gregorian YYYY-MM-DD date.
func ParseBirthdate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Invalid("birthdate must look like 1990-04-21")
	}
	return t, nil
}

// ParseChatID parses a platform chat id. Group ids are negative.
func ParseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("%q is not a chat id", s)
	}
	return id, nil
}

// ParseTelegramID parses a positive platform user id.
func ParseTelegramID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("%q is not a user id", s)
	}
	return id, nil
}
