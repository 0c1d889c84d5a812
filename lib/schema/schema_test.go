package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func parse(t testing.TB, src string) any {
	var tree any
	require.NoError(t, json.Unmarshal([]byte(src), &tree))
	return tree
}

var shapes = func() *Set {
	set, err := NewSet(fstest.MapFS{
		"lessons.json": {Data: []byte(`{
			"$defs": {
				"arrange": {
					"type": "object",
					"required": ["weekDay", "rooms", "expLessonGroup"],
					"properties": {
						"weekDay": {"type": "integer"},
						"rooms": {"type": "string"},
						"expLessonGroup": {"type": ["string", "null"]}
					}
				},
				"lesson": {
					"type": "object",
					"required": ["id", "no", "credits", "scheduled", "arrangeInfo"],
					"properties": {
						"id": {"type": "integer"},
						"no": {"type": "string"},
						"credits": {"type": "number"},
						"scheduled": {"type": "boolean"},
						"arrangeInfo": {"type": "array", "items": {"$ref": "#/$defs/arrange"}},
						"virtualCost": {"type": ["integer", "null"]}
					}
				}
			},
			"type": "array",
			"items": {"$ref": "#/$defs/lesson"}
		}`)},
		"counts.json": {Data: []byte(`{
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["sc"],
				"properties": {"sc": {"type": "integer"}}
			}
		}`)},
		"tagged.json": {Data: []byte(`{
			"type": "object",
			"required": ["lesson", "tags"],
			"properties": {
				"lesson": {"$ref": "lessons.json#/$defs/lesson"},
				"tags": {"type": "array", "items": {"type": "string"}}
			}
		}`)},
		"README.md": {Data: []byte("not a schema")},
	})
	if err != nil {
		panic(err)
	}
	return set
}()

var lessonsShape = shapes.MustShape("lessons.json")

func TestValidateAccepts(t *testing.T) {
	tree := parse(t, `[{
		"id": 1, "no": "0001", "credits": 2, "scheduled": true, "unknown": [1, 2],
		"arrangeInfo": [{"weekDay": 3, "rooms": "A101", "expLessonGroup": null}]
	}, {
		"id": 2, "no": "0002", "credits": 2.5, "scheduled": false, "virtualCost": null,
		"arrangeInfo": []
	}]`)
	require.NoError(t, Validate(tree, lessonsShape))
}

func TestValidateRejects(t *testing.T) {
	table := []struct {
		name   string
		tree   string
		path   string
		reason string
	}{
		{
			name:   "fractional int",
			tree:   `[{"id": 1.5, "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": []}]`,
			path:   "$[0].id",
			reason: "expected integer, but got number",
		},
		{
			name:   "missing field",
			tree:   `[{"id": 1, "credits": 1, "scheduled": true, "arrangeInfo": []}]`,
			path:   "$[0]",
			reason: "missing properties: 'no'",
		},
		{
			name:   "no coercion",
			tree:   `[{"id": "1", "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": []}]`,
			path:   "$[0].id",
			reason: "expected integer, but got string",
		},
		{
			name:   "nested",
			tree:   `[{"id": 1, "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": [{"weekDay": "mon", "rooms": "", "expLessonGroup": null}]}]`,
			path:   "$[0].arrangeInfo[0].weekDay",
			reason: "expected integer, but got string",
		},
		{
			name:   "null in non-nullable",
			tree:   `[{"id": 1, "no": null, "credits": 1, "scheduled": true, "arrangeInfo": []}]`,
			path:   "$[0].no",
			reason: "expected string, but got null",
		},
		{
			name:   "optional present but wrong",
			tree:   `[{"id": 1, "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": [], "virtualCost": false}]`,
			path:   "$[0].virtualCost",
			reason: "expected integer or null, but got boolean",
		},
		{
			name:   "root",
			tree:   `{}`,
			path:   "$",
			reason: "expected array, but got object",
		},
	}

	for _, row := range table {
		err := Validate(parse(t, row.tree), lessonsShape)
		var schemaErr *Error
		require.True(t, errors.As(err, &schemaErr), row.name)
		require.Equal(t, row.path, schemaErr.Path, row.name)
		require.Equal(t, row.reason, schemaErr.Reason, row.name)
	}
}

func TestValidateMap(t *testing.T) {
	shape := shapes.MustShape("counts.json")

	require.NoError(t, Validate(parse(t, `{"1": {"sc": 1}, "2": {"sc": 0}}`), shape))
	require.NoError(t, Validate(parse(t, `{}`), shape))

	err := Validate(parse(t, `{"b": {"sc": 1}, "a-1": {"sc": true}}`), shape)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, `$["a-1"].sc`, schemaErr.Path)
	require.Equal(t, true, schemaErr.Value)
}

func TestValidateReportsEarliestLocation(t *testing.T) {
	tree := parse(t, `[
		{"id": 1, "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 2, "no": 2, "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 3, "no": "3", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 4, "no": "4", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 5, "no": "5", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 6, "no": "6", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 7, "no": "7", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 8, "no": "8", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 9, "no": "9", "credits": 1, "scheduled": true, "arrangeInfo": []},
		{"id": 10, "no": "10", "credits": "x", "scheduled": "y", "arrangeInfo": []}
	]`)

	for i := 0; i < 20; i++ {
		err := Validate(tree, lessonsShape)
		var schemaErr *Error
		require.ErrorAs(t, err, &schemaErr)
		require.Equal(t, "$[1].no", schemaErr.Path)
		require.Equal(t, float64(2), schemaErr.Value)
	}
}

func TestShapeAcrossDocuments(t *testing.T) {
	shape := shapes.MustShape("tagged.json")
	require.Equal(t, "tagged.json", shape.String())

	require.NoError(t, Validate(parse(t, `{
		"lesson": {"id": 1, "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": []},
		"tags": ["a"]
	}`), shape))

	err := Validate(parse(t, `{
		"lesson": {"id": 1, "no": "1", "credits": 1, "scheduled": true, "arrangeInfo": [
			{"weekDay": 1, "rooms": "A101", "expLessonGroup": 3}
		]},
		"tags": []
	}`), shape)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "$.lesson.arrangeInfo[0].expLessonGroup", schemaErr.Path)
	require.Equal(t, "expected string or null, but got number", schemaErr.Reason)
	require.Contains(t, err.Error(), "$.lesson.arrangeInfo[0].expLessonGroup")
}

func TestShapeUnknownReference(t *testing.T) {
	_, err := shapes.Shape("missing.json")
	require.Error(t, err)

	_, err = shapes.Shape("lessons.json#/$defs/missing")
	require.Error(t, err)
}

type arrangement struct {
	WeekDay        int     `json:"weekDay"`
	Rooms          string  `json:"rooms"`
	ExpLessonGroup *string `json:"expLessonGroup"`
}

type lesson struct {
	Id          int           `json:"id"`
	No          string        `json:"no"`
	Credits     float64       `json:"credits"`
	Scheduled   bool          `json:"scheduled"`
	ArrangeInfo []arrangement `json:"arrangeInfo"`
	VirtualCost *int          `json:"virtualCost,omitempty"`
}

func TestDecode(t *testing.T) {
	tree := parse(t, `[{
		"id": 1, "no": "0001", "credits": 2, "scheduled": true,
		"arrangeInfo": [{"weekDay": 3, "rooms": "A101", "expLessonGroup": "g1"}],
		"virtualCost": 4
	}, {
		"id": 2, "no": "0002", "credits": 2.5, "scheduled": false,
		"arrangeInfo": [{"weekDay": 5, "rooms": "B202", "expLessonGroup": null}]
	}]`)

	lessons, err := Decode[[]lesson](tree, lessonsShape)
	require.NoError(t, err)
	require.Len(t, lessons, 2)

	require.Equal(t, 1, lessons[0].Id)
	require.Equal(t, float64(2), lessons[0].Credits)
	require.Equal(t, "g1", *lessons[0].ArrangeInfo[0].ExpLessonGroup)
	require.Equal(t, 4, *lessons[0].VirtualCost)

	require.Equal(t, 2.5, lessons[1].Credits)
	require.Nil(t, lessons[1].ArrangeInfo[0].ExpLessonGroup)
	require.Nil(t, lessons[1].VirtualCost)
}

func TestDecodeRejectsBeforeDecoding(t *testing.T) {
	_, err := Decode[[]lesson](parse(t, `[{"id": 1}]`), lessonsShape)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "$[0]", schemaErr.Path)
	require.Equal(t, "missing properties: 'no', 'credits', 'scheduled', 'arrangeInfo'", schemaErr.Reason)
}
