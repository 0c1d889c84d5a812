package eamis

import (
	"embed"
	"io/fs"

	"eamis-catcher/lib/schema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var shapes = func() *schema.Set {
	sub, err := fs.Sub(schemaFiles, "schemas")
	if err != nil {
		panic(err)
	}
	set, err := schema.NewSet(sub)
	if err != nil {
		panic(err)
	}
	return set
}()

var (
	lessonListShape  = shapes.MustShape("eamis.json#/$defs/lessons")
	stdCountMapShape = shapes.MustShape("eamis.json#/$defs/stdCounts")
	electResultShape = shapes.MustShape("eamis.json#/$defs/electResult")
	fullDataShape    = shapes.MustShape("eamis.json#/$defs/fullData")
)

// FullDataShape is the shape of a FullData document as written by
// encoding/json, used to check persisted snapshots before loading them.
func FullDataShape() *schema.Shape {
	return fullDataShape
}
