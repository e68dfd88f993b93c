package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	if page < 1 {
		page = 1
	}
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// stages returns the $skip and $limit stages of an aggregation
func (mp *mongoPaginate) stages() bson.A {
	if mp.limit <= 0 {
		return bson.A{}
	}
	return bson.A{
		bson.M{"$skip": mp.page*mp.limit - mp.limit},
		bson.M{"$limit": mp.limit},
	}
}

// reportFilter translates a listing filter into a query document
func reportFilter(f models.ReportFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.SubmitterID != "" {
		filter["submitterId"] = f.SubmitterID
	}
	return filter
}
