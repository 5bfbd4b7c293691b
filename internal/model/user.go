package model

import "time"

const (
	RoleDistributionTech = "DISTRIBUTION_TECH"
	RoleSupervisor       = "SUPERVISOR"
)

type User struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
