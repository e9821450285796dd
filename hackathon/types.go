package hackathon

import "time"

type Profile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Bio         string   `json:"bio,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

type Hackathon struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	MaxTeamSize int       `json:"max_team_size"`
}

type Team struct {
	ID          string   `json:"id"`
	HackathonID string   `json:"hackathon_id"`
	Name        string   `json:"name"`
	Members     []string `json:"members"`
}

type Invitation struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials is the body of a login call.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
