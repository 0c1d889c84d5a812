package eamis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"eamis-catcher/lib/jsdata"
)

const report_client_elect_course = "client.elect-course"

// electSetup stubs the browser globals the election result script touches.
// It must be built for every evaluation since the table object is mutated.
func electSetup() jsdata.Setup {
	query := jsdata.Returning(func() any {
		return jsdata.NoopObject("html", "text", "show", "hide")
	})
	return jsdata.Setup{Globals: map[string]any{
		"electCourseTable": jsdata.MergingObject("lessons", "update"),
		"jQuery":           query,
		"$":                query,
	}}
}

func electForm(lessonId int) url.Values {
	id := strconv.Itoa(lessonId)
	return url.Values{
		"optype":                  {"true"},
		"operator0":               {id + ":true:0"},
		"lesson0":                 {id},
		"expLessonGroup_" + id:    {"undefined"},
		"alternateElection_" + id: {"1"},
	}
}

func parseElectResult(raw []byte) (ElectResult, error) {
	doc, err := parseHtml("elect-course", raw)
	if err != nil {
		return ElectResult{}, err
	}

	var result ElectResult
	// html parsers insert a tbody between table and tr
	msg := doc.Find("table tr > td > div").First()
	if msg.Length() > 0 {
		text := strings.TrimSpace(msg.Text())
		result.Msg = &text
	}

	script, err := scriptText("elect-course", raw, doc, "table tr > script")
	if err != nil {
		return result, err
	}
	data, err := decodeScript[ElectResultData](script, "window.electCourseTable", electSetup(), electResultShape)
	if err != nil {
		return result, err
	}
	result.Data = data
	return result, nil
}

// ElectCourse submits an election request for a single lesson. The
// semester id is sent as a cookie since the portal ignores it anywhere else.
func (c *Client) ElectCourse(ctx context.Context, profileId string, lessonId int, semesterId string) (ElectResult, error) {
	res, err := c.session.XHR(ctx, http.MethodPost, PathBatchOperator, XHROptions{
		Query:   url.Values{"profileId": {profileId}},
		Form:    electForm(lessonId),
		Cookies: []*http.Cookie{{Name: "semester.id", Value: semesterId}},
	})
	if err != nil {
		c.tel.ReportBroken(report_client_elect_course, fmt.Errorf("fetch: %w", err), profileId, lessonId)
		return ElectResult{}, fmt.Errorf("elect course %d: %w", lessonId, err)
	}

	result, err := parseElectResult(res.Body())
	if err != nil {
		c.tel.ReportBroken(report_client_elect_course, err, profileId, lessonId)
		return ElectResult{}, fmt.Errorf("elect course %d: %w", lessonId, err)
	}

	msg := ""
	if result.Msg != nil {
		msg = *result.Msg
	}
	c.tel.ReportDebug(report_client_elect_course, lessonId, result.Data.Elected, msg)
	return result, nil
}
