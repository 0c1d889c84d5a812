package jsdata

import (
	"errors"
	"math"
	"testing"
	"testing/fstest"

	"eamis-catcher/lib/schema"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestExtractLiteralTree(t *testing.T) {
	tree, err := Extract(`var x = {"a": 1, "b": [true, null]};`, "x", Setup{})
	require.NoError(t, err)

	expected := map[string]any{
		"a": float64(1),
		"b": []any{true, nil},
	}
	if diff := cmp.Diff(expected, tree); diff != "" {
		t.Fatal(diff)
	}

	shapes, err := schema.NewSet(fstest.MapFS{
		"x.json": {Data: []byte(`{
			"type": "object",
			"required": ["a", "b"],
			"properties": {
				"a": {"type": "integer"},
				"b": {"type": "array", "items": {"type": ["boolean", "null"]}}
			}
		}`)},
	})
	require.NoError(t, err)
	shape := shapes.MustShape("x.json")
	require.NoError(t, schema.Validate(tree, shape))

	tree, err = Extract(`var x = {"a": 1.5, "b": [true, null]};`, "x", Setup{})
	require.NoError(t, err)
	var schemaErr *schema.Error
	require.ErrorAs(t, schema.Validate(tree, shape), &schemaErr)
	require.Equal(t, "$.a", schemaErr.Path)
}

func TestExtractLessonJSONs(t *testing.T) {
	source := `
		/* generated by eams */
		var lessonJSONs = [{id:354161,no:'0001',name:"高等数学",credits:5,scheduled:true,
			remark:'',arrangeInfo:[{weekDay:1,weekState:'01111',startUnit:1,endUnit:2,
			expLessonGroup:null,expLessonGroupNo:null,rooms:'公教A101'}],
			expLessonGroups:[],},];
		// trailing comment
		var lessonId2Index = {};
	`
	tree, err := Extract(source, "lessonJSONs", Setup{})
	require.NoError(t, err)

	lessons, ok := tree.([]any)
	require.True(t, ok)
	require.Len(t, lessons, 1)

	lesson := lessons[0].(map[string]any)
	require.Equal(t, float64(354161), lesson["id"])
	require.Equal(t, "0001", lesson["no"])
	require.Equal(t, "高等数学", lesson["name"])
	require.Equal(t, true, lesson["scheduled"])
	require.Equal(t, []any{}, lesson["expLessonGroups"])

	arrange := lesson["arrangeInfo"].([]any)[0].(map[string]any)
	require.Equal(t, "公教A101", arrange["rooms"])
	require.Nil(t, arrange["expLessonGroup"])
	require.Contains(t, arrange, "expLessonGroup")
}

func TestExtractWindowProperty(t *testing.T) {
	source := `window.lessonId2Counts={'354161':{sc:10,lc:120,upsc:0,uplc:0,plc:120,puplc:0},
		"354162":{sc:3,lc:30,upsc:0,uplc:0,plc:30,puplc:0,expLessonGroups:{"77":{indexNo:1,stdCount:2,stdCountLimit:10,proStdCountLimit:0}}}}`

	tree, err := Extract(source, "window.lessonId2Counts", Setup{})
	require.NoError(t, err)

	counts := tree.(map[string]any)
	require.Len(t, counts, 2)
	require.Equal(t, float64(10), counts["354161"].(map[string]any)["sc"])

	// window properties and globals are the same binding
	tree, err = Extract(source, "lessonId2Counts", Setup{})
	require.NoError(t, err)
	require.Len(t, tree.(map[string]any), 2)
}

func TestExtractWithHostObjects(t *testing.T) {
	setup := Setup{Globals: map[string]any{
		"electCourseTable": MergingObject("lessons", "update"),
		"jQuery":           Returning(func() any { return NoopObject("html") }),
	}}
	source := `
		window.electCourseTable.lessons({id:354161}).update({
			virtualCost: 0, preElect: false, defaultElected: false, elected: true
		});
		jQuery("#electMsg").html("选课成功");
	`
	tree, err := Extract(source, "window.electCourseTable", setup)
	require.NoError(t, err)

	expected := map[string]any{
		"id":             float64(354161),
		"virtualCost":    float64(0),
		"preElect":       false,
		"defaultElected": false,
		"elected":        true,
	}
	if diff := cmp.Diff(expected, tree); diff != "" {
		t.Fatal(diff)
	}
}

func TestExtractValues(t *testing.T) {
	table := []struct {
		source   string
		expected any
	}{
		{source: `var v = -1.5e2`, expected: float64(-150)},
		{source: `var v = 0x1F`, expected: float64(31)},
		{source: `var v = .5`, expected: 0.5},
		{source: `var v = !0`, expected: true},
		{source: `var v = +"42"`, expected: float64(42)},
		{source: `var v = 'it\'s'`, expected: "it's"},
		{source: `var v = "😀"`, expected: "😀"},
		{source: `var v = "\x41\u{1F600}"`, expected: "A😀"},
		{source: `var v = [1, undefined, function_ref]; var function_ref`, expected: nil},
		{source: "var a = [1,2,3]\nvar v = a[1]", expected: float64(2)},
		{source: "var a = [1,2,3]\nvar v = a.length", expected: float64(3)},
		{source: `var o = {k: {n: 'x'}}; var v = o["k"].n`, expected: "x"},
		{source: `var v = {drop: undefined, keep: 1}`, expected: map[string]any{"keep": float64(1)}},
		{source: `var v = [undefined]`, expected: []any{nil}},
		{source: `var v = {1: 'a', 2.5: 'b'}`, expected: map[string]any{"1": "a", "2.5": "b"}},
		{source: `let a = 1, b = 2; const v = [a, b]`, expected: []any{float64(1), float64(2)}},
		{source: `var v; v = 3`, expected: float64(3)},
	}

	for _, row := range table {
		tree, err := Extract(row.source, "v", Setup{})
		if row.expected == nil {
			// first element is fine, the undefined identifier must fail
			require.Error(t, err, row.source)
			continue
		}
		require.NoError(t, err, row.source)
		if diff := cmp.Diff(row.expected, tree); diff != "" {
			t.Fatalf("%s: %s", row.source, diff)
		}
	}
}

func TestExtractNaN(t *testing.T) {
	tree, err := Extract(`var v = [-undefined]`, "v", Setup{})
	require.NoError(t, err)
	require.Equal(t, []any{nil}, tree)

	value, err := toNumber(Undefined)
	require.NoError(t, err)
	require.True(t, math.IsNaN(value))
}

func TestExtractErrors(t *testing.T) {
	table := []struct {
		name     string
		source   string
		variable string
	}{
		{name: "syntax", source: `var x = {a: 1`, variable: "x"},
		{name: "unterminated string", source: `var x = "abc`, variable: "x"},
		{name: "function", source: `function f() {}; var x = 1`, variable: "x"},
		{name: "undefined identifier", source: `var x = y`, variable: "x"},
		{name: "not a function", source: `var x = 1; x()`, variable: "x"},
		{name: "missing variable", source: `var y = 1`, variable: "x"},
		{name: "undefined variable", source: `var x`, variable: "x"},
		{name: "property of null", source: `var x = null.a`, variable: "x"},
		{name: "binary operator", source: `var x = 1 * 2`, variable: "x"},
		{name: "invalid reference", source: `var x = 1`, variable: "x[0]"},
		{name: "statements on one line", source: `var x = 1 var y = 2`, variable: "x"},
	}

	for _, row := range table {
		_, err := Extract(row.source, row.variable, Setup{})
		require.Error(t, err, row.name)

		var extractErr *ExtractionError
		require.True(t, errors.As(err, &extractErr), row.name)
		require.Equal(t, row.source, extractErr.Source, row.name)
		require.Equal(t, row.variable, extractErr.Variable, row.name)
	}
}

func TestExtractErrorOffset(t *testing.T) {
	source := `var x = {a: 1, b: @}`
	_, err := Extract(source, "x", Setup{})

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	require.Equal(t, 18, extractErr.Offset)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Contains(t, extractErr.Snippet(3), "@")
}

func TestExtractDeepNesting(t *testing.T) {
	source := "var x = "
	for i := 0; i < 2000; i++ {
		source += "["
	}
	_, err := Extract(source, "x", Setup{})
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestSetupIsolation(t *testing.T) {
	setup := Setup{Globals: map[string]any{"base": float64(1)}}
	_, err := Extract(`base = 2; var x = base`, "x", setup)
	require.NoError(t, err)
	require.Equal(t, float64(1), setup.Globals["base"])
}
