// internal/app/store/storeutil/storeutil.go
package storeutil

import (
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Paginate returns *options.FindOptions with skip/limit given a 0-based page.
func Paginate(size, page int) *options.FindOptions {
	if size <= 0 {
		size = 30
	}
	if page < 0 {
		page = 0
	}
	return options.Find().
		SetLimit(int64(size)).
		SetSkip(Skip(page, size))
}

// Skip is page*size, saturating at math.MaxInt64 instead of wrapping.
func Skip(page, size int) int64 {
	if page <= 0 || size <= 0 {
		return 0
	}
	if int64(page) > math.MaxInt64/int64(size) {
		return math.MaxInt64
	}
	return int64(page) * int64(size)
}

// Newest is the sort order for owner-scoped listings: most recent first,
// ties broken by _id so pages never overlap.
func Newest(field string) bson.D {
	return bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}}
}
