package auth_test

import (
	"testing"

	"github.com/xaenox/vaaniii/internal/auth"
	"github.com/xaenox/vaaniii/internal/models"
)

func TestNewEmailUser(t *testing.T) {
	u := auth.NewEmailUser(" Ada.Lovelace@Example.com ")
	if u.ID != "g_ada_lovelace_example_com" || u.Name != "ada.lovelace" || u.Email != "ada.lovelace@example.com" {
		t.Fatalf("got %+v", u)
	}
	if u.Method != models.MethodGmail || u.Rank != models.RankCadet || u.XP != 0 {
		t.Fatalf("bad defaults: %+v", u)
	}
	if u.Theme != "CYAN" || u.AudioVolume != 1.0 || u.AutoLockMinutes != 5 {
		t.Fatalf("bad preferences: %+v", u.Preferences)
	}
}

func TestNewPhoneUser(t *testing.T) {
	u := auth.NewPhoneUser("+91 (98) 7654-3210")
	if u.ID != "p_919876543210" || u.Name != "Agent 3210" || u.Method != models.MethodPhone {
		t.Fatalf("got %+v", u)
	}
	if short := auth.NewPhoneUser("12"); short.Name != "Agent 12" {
		t.Fatalf("short number name = %q", short.Name)
	}
}

func TestNewTelegramUser(t *testing.T) {
	if u := auth.NewTelegramUser(42, "neo"); u.ID != "tg_42" || u.Name != "neo" || u.Method != models.MethodTelegram {
		t.Fatalf("got %+v", u)
	}
	if u := auth.NewTelegramUser(7, ""); u.Name != "Agent 7" {
		t.Fatalf("fallback name = %q", u.Name)
	}
}
