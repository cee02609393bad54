// Package schemas embeds the JSON Schema documents for extracted records.
package schemas

import "embed"

// Schema file names.
const (
	PartialRecordFile = "partial_record.schema.json"
	ESGRecordFile     = "esg_record.schema.json"
)

//go:embed *.schema.json
var Files embed.FS
