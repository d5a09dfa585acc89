package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// '#' and ':' would break the name#discriminator:password credential format
var forbiddenUsernameChars = regexp.MustCompile(`[#:\x00-\x1f\x7f]`)

func Username(username string) error {
	length := utf8.RuneCountInString(username)
	if length == 0 {
		return fmt.Errorf("empty_username")
	} else if length < 2 {
		return fmt.Errorf("short_username")
	} else if length > 32 {
		return fmt.Errorf("long_username")
	}

	if forbiddenUsernameChars.MatchString(username) {
		return fmt.Errorf("bad_character")
	}

	if strings.TrimSpace(username) != username {
		return fmt.Errorf("surrounding_whitespace")
	}
	return nil
}

func Password(password string) error {
	length := len(password)
	if length == 0 {
		return fmt.Errorf("empty_password")
	} else if length > 72 { // bcrypt ignores everything past 72 bytes
		return fmt.Errorf("long_password")
	}
	return nil
}

func ServerName(name string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(name))
	if length == 0 {
		return fmt.Errorf("empty_server_name")
	} else if length > 64 {
		return fmt.Errorf("long_server_name")
	}
	return nil
}

func MessageContents(contents string) error {
	length := utf8.RuneCountInString(contents)
	if strings.TrimSpace(contents) == "" {
		return fmt.Errorf("empty_message")
	} else if length > 2000 {
		return fmt.Errorf("long_message")
	}
	return nil
}
