package models

type ContactMethod string

const (
	MethodGmail    ContactMethod = "gmail"
	MethodPhone    ContactMethod = "phone"
	MethodTelegram ContactMethod = "telegram"
)

type Rank string

const (
	RankCadet      Rank = "CADET"
	RankLieutenant Rank = "LIEUTENANT"
	RankCaptain    Rank = "CAPTAIN"
	RankAdmiral    Rank = "ADMIRAL"
)

// RankFor returns the rank tier earned by the given experience score.
func RankFor(xp int) Rank {
	switch {
	case xp > 5000:
		return RankAdmiral
	case xp > 2000:
		return RankCaptain
	case xp > 0:
		return RankLieutenant
	default:
		return RankCadet
	}
}

// Preferences are the UI flags stored alongside the user profile.
type Preferences struct {
	Theme              string  `json:"theme"`
	Font               string  `json:"font"`
	AudioVolume        float64 `json:"audioVolume"`
	Hotword            string  `json:"hotword,omitempty"`
	AvatarTexture      string  `json:"avatarTexture,omitempty"`
	ShowConstellations bool    `json:"showConstellations,omitempty"`
	AutoLockMinutes    int     `json:"autoLockMinutes,omitempty"`
	OfflineMode        bool    `json:"isOfflineMode,omitempty"`
	WeatherEffect      string  `json:"weatherEffect,omitempty"`
	EnableTilt         bool    `json:"enableTilt,omitempty"`
	ReducedMotion      bool    `json:"reducedMotion,omitempty"`
	ShowMetrics        bool    `json:"showMetrics,omitempty"`
	VRMode             bool    `json:"vrMode,omitempty"`
}

// DefaultPreferences are applied to newly created profiles.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:           "CYAN",
		Font:            "STANDARD",
		AudioVolume:     1.0,
		AutoLockMinutes: 5,
	}
}

// User is the single active profile of a session.
type User struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Email  string        `json:"email,omitempty"`
	Phone  string        `json:"phone,omitempty"`
	Avatar string        `json:"avatar,omitempty"`
	Method ContactMethod `json:"method"`
	XP     int           `json:"xp"`
	Rank   Rank          `json:"rank"`
	Preferences
}

// AwardXP adds points and recomputes the rank. It reports whether the rank
// changed.
func (u *User) AwardXP(points int) bool {
	u.XP += points
	rank := RankFor(u.XP)
	changed := rank != u.Rank
	u.Rank = rank
	return changed
}

func (u *User) UpgradeFrom(version int) {
	for v := version; v < CurrentVersion; v++ {
		switch v {
		case 0:
			if u.Rank == "" {
				u.Rank = RankFor(u.XP)
			}
			if u.Theme == "" {
				u.Theme = "CYAN"
			}
			if u.Font == "" {
				u.Font = "STANDARD"
			}
		}
	}
}
