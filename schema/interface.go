// Package schema generates schema definitions for the output of the
// audit command.
package schema

import (
	"encoding/json"
	"reflect"

	"github.com/benjaminestes/seocrawl/crawler/data"
)

var bq = fieldsOf(reflect.TypeOf(data.PageReport{}))

// BigQueryJSON is a BigQuery table schema for newline-delimited JSON
// page reports.
func BigQueryJSON() []byte {
	// The schema is built from plain structs; marshalling cannot
	// fail.
	j, _ := json.MarshalIndent(bq, "", "\t")
	return j
}
