package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is one dated value of an indicator. (IndicatorID, Date) is unique;
// writing a record for an existing date replaces its value.
type Record struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IndicatorID primitive.ObjectID `bson:"indicator_id" json:"indicatorId"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"-"`
	Date        string             `bson:"date" json:"date"` // YYYY-MM-DD
	Value       float64            `bson:"value" json:"value"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// MaxRecordMagnitude bounds the absolute value of a record (2^63).
const MaxRecordMagnitude = 1 << 63
