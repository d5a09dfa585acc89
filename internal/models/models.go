package models

import (
	"fmt"
	"time"
)

type Account struct {
	ID            int64   `json:"id,string"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	PasswordHash  string  `json:"passwordHash,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	Servers       []int64 `json:"servers,omitempty"`
	Online        bool    `json:"online"`
	Admin         *bool   `json:"admin,omitempty"`
}

// Tag is the username#discriminator form users log in with.
func (a *Account) Tag() string {
	return FormatTag(a.Username, a.Discriminator)
}

// Public returns a copy without the password hash and membership set.
func (a *Account) Public() Account {
	public := *a
	public.PasswordHash = ""
	public.Servers = nil
	return public
}

func FormatTag(username string, discriminator string) string {
	return fmt.Sprintf("%s#%s", username, discriminator)
}

type Server struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	IconURL *string   `json:"iconUrl,omitempty"`
	OwnerID int64     `json:"owner,string"`
	Members []Account `json:"members,omitempty"`
}

type Invite struct {
	Code      string `json:"code"`
	ServerID  int64  `json:"serverId"`
	InviterID int64  `json:"inviter,string"`
}

type Message struct {
	ID        int64     `json:"id,string"`
	AuthorID  int64     `json:"author,string"`
	ServerID  int64     `json:"server"`
	Contents  string    `json:"contents"`
	CreatedAt time.Time `json:"createdAt"`
}

type AccountUpdate struct {
	Username  string
	Password  Optional[string]
	AvatarURL Optional[string]
	Admin     Optional[bool]
}

type ServerUpdate struct {
	Name    Optional[string]
	IconURL Optional[string]
}
