package model

import (
	"github.com/google/uuid"
)

// Province is one top-level administrative region.
type Province struct {
	Base
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`
}

// School belongs to a province; ManagerID is the account responsible
// for the school's registrations, nullable because rural schools are
// often registered before a manager account exists.
type School struct {
	Base
	Name       string     `json:"name" db:"name"`
	ProvinceID uuid.UUID  `json:"province_id" db:"province_id"`
	ManagerID  *uuid.UUID `json:"manager_id,omitempty" db:"manager_id"`
}
