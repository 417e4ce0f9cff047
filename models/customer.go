package models

import (
	"errors"
	"strings"
)

// CustomerInfo is the customer bound to an occupied or reserved table.
type CustomerInfo struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// Validate -> nama customer wajib diisi
func (c *CustomerInfo) Validate() error {
	if c == nil {
		return errors.New("customer info is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("customer name is required")
	}
	return nil
}

// SameEmail compares emails case-insensitively; an empty email never matches.
func (c *CustomerInfo) SameEmail(email string) bool {
	if c == nil || c.Email == "" || email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(email))
}
