package eamis

import (
	"bytes"
	"fmt"

	"eamis-catcher/lib/jsdata"
	"eamis-catcher/lib/schema"
	"eamis-catcher/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func parseHtml(op string, raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(raw))
	if err != nil {
		return nil, &MarkupError{Op: op, Raw: string(raw), Err: err}
	}
	return doc, nil
}

// scriptText returns the contents of the first script element matching selector.
func scriptText(op string, raw []byte, doc *goquery.Document, selector string) (string, error) {
	script := doc.Find(selector).First()
	if script.Length() == 0 {
		return "", &MarkupError{
			Op:  op,
			Raw: string(raw),
			Err: fmt.Errorf("could not find script %q", selector),
		}
	}
	return htmlutil.GetText(script.Get(0)), nil
}

// decodeScript evaluates source, then validates and decodes the value of
// variable into a T.
func decodeScript[T any](source, variable string, setup jsdata.Setup, shape *schema.Shape) (T, error) {
	tree, err := jsdata.Extract(source, variable, setup)
	if err != nil {
		var zero T
		return zero, err
	}
	return schema.Decode[T](tree, shape)
}
