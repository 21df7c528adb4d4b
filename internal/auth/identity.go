// Package auth builds user profiles for the supported sign-in methods.
package auth

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/xaenox/vaaniii/internal/models"
)

var nonDigits = regexp.MustCompile(`\D`)

func newUser(id, name string, method models.ContactMethod) *models.User {
	return &models.User{
		ID:          id,
		Name:        name,
		Method:      method,
		Rank:        models.RankCadet,
		Avatar:      avatarURL(name),
		Preferences: models.DefaultPreferences(),
	}
}

func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&bold=true"
}

// NewEmailUser derives a profile from an email address. The id is stable for
// the same address.
func NewEmailUser(email string) *models.User {
	email = strings.TrimSpace(strings.ToLower(email))
	name, _, _ := strings.Cut(email, "@")
	id := "g_" + strings.NewReplacer("@", "_", ".", "_").Replace(email)

	u := newUser(id, name, models.MethodGmail)
	u.Email = email
	return u
}

// NewPhoneUser derives a profile from a phone number, ignoring formatting.
func NewPhoneUser(phone string) *models.User {
	digits := nonDigits.ReplaceAllString(phone, "")
	last := digits
	if len(last) > 4 {
		last = last[len(last)-4:]
	}

	u := newUser("p_"+digits, "Agent "+last, models.MethodPhone)
	u.Phone = phone
	return u
}

// NewTelegramUser builds a profile for a Telegram account.
func NewTelegramUser(id int64, name string) *models.User {
	if name == "" {
		name = fmt.Sprintf("Agent %d", id)
	}
	return newUser("tg_"+strconv.FormatInt(id, 10), name, models.MethodTelegram)
}
