package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Indicator is a named numeric time series owned by one user.
type Indicator struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"createdBy"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Unit        string             `bson:"unit" json:"unit"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

const (
	IndicatorNameMaxLength        = 40
	IndicatorUnitMaxLength        = 16
	IndicatorDescriptionMaxLength = 200
)
