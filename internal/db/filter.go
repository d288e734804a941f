package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FilterBuilder helps build MongoDB filters fluently
type FilterBuilder struct {
	filter bson.M
}

// NewFilter creates a new FilterBuilder
func NewFilter() *FilterBuilder {
	return &FilterBuilder{filter: bson.M{}}
}

// Eq adds an equality condition
func (f *FilterBuilder) Eq(field string, value interface{}) *FilterBuilder {
	f.filter[field] = value
	return f
}

// Ne adds a not-equal condition
func (f *FilterBuilder) Ne(field string, value interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$ne": value}
	return f
}

// In adds an $in condition (value in array)
func (f *FilterBuilder) In(field string, values interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$in": values}
	return f
}

// All requires an array field to contain every given value
func (f *FilterBuilder) All(field string, values interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$all": values}
	return f
}

// SizedAll requires an array field to contain exactly the given values
// and nothing else. Used for the direct-thread participant lookup.
func (f *FilterBuilder) SizedAll(field string, values []string) *FilterBuilder {
	f.filter[field] = bson.M{"$all": values, "$size": len(values)}
	return f
}

// ObjectID adds an equality condition on an ObjectID field from its hex form
func (f *FilterBuilder) ObjectID(field string, hex string) *FilterBuilder {
	if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
		f.filter[field] = oid
	} else {
		f.filter[field] = hex
	}
	return f
}

// Exists checks if field exists
func (f *FilterBuilder) Exists(field string, exists bool) *FilterBuilder {
	f.filter[field] = bson.M{"$exists": exists}
	return f
}

// Build returns the assembled filter
func (f *FilterBuilder) Build() bson.M {
	return f.filter
}
