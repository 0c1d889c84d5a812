package eamis

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"eamis-catcher/internal/components/telemetry"
)

type fakeProfile struct {
	id         string
	title      string
	tips       string
	semesterId string
	// lessons is the script served by the data endpoint
	lessons string
}

type fakeRequest struct {
	method  string
	path    string
	query   url.Values
	form    url.Values
	header  http.Header
	cookies map[string]string
	at      time.Time
}

// fakePortal serves the pages of the election portal and enforces its
// visiting order: default pages fail before the landing page was visited,
// lesson data fails before the profile's default page was visited.
type fakePortal struct {
	server *httptest.Server

	mutex     sync.Mutex
	requests  []fakeRequest
	activated bool
	warmed    map[string]bool

	profiles []fakeProfile
	// landingRedirect makes the landing page redirect when set
	landingRedirect string
	stdCounts       string
	// electStatus overrides the status code of the election endpoint per lesson id
	electStatus map[int]int
	// electElected is the elected flag reported per lesson id, defaults to true
	electElected map[int]bool
}

func newFakePortal(t testing.TB, profiles ...fakeProfile) *fakePortal {
	p := &fakePortal{
		profiles:     profiles,
		warmed:       map[string]bool{},
		electStatus:  map[int]int{},
		electElected: map[int]bool{},
		stdCounts:    `window.lessonId2Counts={'1':{sc:10,lc:100,upsc:0,uplc:0,plc:80,puplc:20}};`,
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) Requests(path string) []fakeRequest {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	var out []fakeRequest
	for _, r := range p.requests {
		if path == "" || r.path == path {
			out = append(out, r)
		}
	}
	return out
}

func (p *fakePortal) profile(id string) (fakeProfile, bool) {
	for _, profile := range p.profiles {
		if profile.id == id {
			return profile, true
		}
	}
	return fakeProfile{}, false
}

func (p *fakePortal) serve(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cookies := map[string]string{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.requests = append(p.requests, fakeRequest{
		method:  r.Method,
		path:    r.URL.Path,
		query:   r.URL.Query(),
		form:    r.PostForm,
		header:  r.Header.Clone(),
		cookies: cookies,
		at:      time.Now(),
	})

	switch r.URL.Path {
	case PathLanding:
		if p.landingRedirect != "" {
			http.Redirect(w, r, p.landingRedirect, http.StatusFound)
			return
		}
		p.activated = true
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "fake", Path: "/"})
		fmt.Fprint(w, landingPage(p.profiles...))
	case PathDefaultPage:
		if !p.activated {
			http.Error(w, "not activated", http.StatusInternalServerError)
			return
		}
		id := r.URL.Query().Get("electionProfile.id")
		profile, ok := p.profile(id)
		if !ok {
			http.Error(w, "no such profile", http.StatusInternalServerError)
			return
		}
		p.warmed[id] = true
		fmt.Fprint(w, defaultPage(profile.semesterId))
	case PathLessonData:
		id := r.URL.Query().Get("profileId")
		if !p.warmed[id] {
			http.Error(w, "default page not visited", http.StatusInternalServerError)
			return
		}
		profile, _ := p.profile(id)
		fmt.Fprint(w, profile.lessons)
	case PathStdCount:
		if r.URL.Query().Get("projectId") != "1" {
			http.Error(w, "bad project", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, p.stdCounts)
	case PathBatchOperator:
		if r.Method != http.MethodPost || cookies["semester.id"] == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		lessonId, err := strconv.Atoi(r.PostForm.Get("lesson0"))
		if err != nil {
			http.Error(w, "bad lesson", http.StatusBadRequest)
			return
		}
		if status, ok := p.electStatus[lessonId]; ok {
			http.Error(w, "failure", status)
			return
		}
		elected, ok := p.electElected[lessonId]
		if !ok {
			elected = true
		}
		msg := "选课成功"
		if !elected {
			msg = "选课失败：人数已满"
		}
		fmt.Fprint(w, electResponse(lessonId, elected, msg))
	default:
		http.NotFound(w, r)
	}
}

func landingPage(profiles ...fakeProfile) string {
	var notices strings.Builder
	for i, profile := range profiles {
		fmt.Fprintf(&notices, `
		<div id="electIndexNotice%d" class="notice">
			<div class="title"><h3>
				%s
			</h3></div>
			<div class="tips"><div>  %s  </div></div>
			<div class="entry">
				<a href="/eams/stdElectCourse!defaultPage.action?electionProfile.id=%s">进入选课&gt;&gt;&gt;</a>
			</div>
		</div>
		<div class="separator"></div>`, i, profile.title, profile.tips, profile.id)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>选课</title></head>
<body>
	<div class="ajax_container">
		%s
	</div>
</body></html>`, notices.String())
}

func defaultPage(semesterId string) string {
	return fmt.Sprintf(`<html><head>
	<script id="qr_script" src="/eams/static/scripts/qr.js?semesterId=%s&amp;v=2"></script>
</head><body><div id="electContent"></div></body></html>`, semesterId)
}

func lessonLiteral(id int, no, name, teachers string) string {
	return fmt.Sprintf(`{id:%d,no:'%s',name:'%s',limitCount:100,planLimitCount:80,unplanLimitCount:20,
		code:'C%s',credits:2,courseId:%d,startWeek:1,endWeek:16,courseTypeId:5,
		courseTypeName:'专业必修',courseTypeCode:'03',scheduled:true,hasTextBook:false,period:32,
		weekHour:2,withdrawable:true,langTypeName:'中文',textbooks:'',teachers:'%s',
		teacherIds:'77',campusCode:'1',campusName:'八里台',midWithdraw:'N',reservedCount:'0',remark:'',
		arrangeInfo:[{weekDay:2,weekState:'01111111111111111',startUnit:3,endUnit:4,weekStateDigest:'1-16',
			startTime:1000,endTime:1140,expLessonGroup:null,expLessonGroupNo:null,roomIds:'101',rooms:'公教A101'}],
		expLessonGroups:[]}`, id, no, name, no, id+90000, teachers)
}

func lessonsScript(lessons ...string) string {
	return "/* lessons */\nvar lessonJSONs = [" + strings.Join(lessons, ",\n") + "];\nvar lessonId2Index = {};\n"
}

func electResponse(lessonId int, elected bool, msg string) string {
	return fmt.Sprintf(`<html><body>
<table width="100%%">
	<tr><td><div style="color:red">
		%s
	</div></td></tr>
	<tr><script type="text/javascript">
		window.electCourseTable.lessons({id:%d}).update({
			virtualCost:0,preElect:false,defaultElected:false,elected:%t
		});
		jQuery("#electDefaultMsg").html("");
	</script></tr>
</table>
</body></html>`, msg, lessonId, elected)
}

// noRateLimits removes the default rules so tests do not wait on them.
func noRateLimits() map[string]RateLimitRule {
	rules := map[string]RateLimitRule{}
	for path := range DefaultRateLimits() {
		rules[path] = RateLimitRule{}
	}
	return rules
}

func testClientOptions(portal *fakePortal) ClientOptions {
	return ClientOptions{
		SessionOptions: SessionOptions{
			BaseUrl:   portal.server.URL,
			Telemetry: telemetry.NewTestAPI(),
		},
		RateLimits: noRateLimits(),
	}
}

func newTestClient(t testing.TB, portal *fakePortal, modify ...func(*ClientOptions)) (*Client, *telemetry.TestAPI) {
	tel := telemetry.NewTestAPI()
	opts := testClientOptions(portal)
	opts.Telemetry = tel
	for _, m := range modify {
		m(&opts)
	}

	client, err := NewClient(opts)
	if err != nil {
		t.Fatal(err)
	}
	return client, tel
}

func twoProfiles() []fakeProfile {
	return []fakeProfile{
		{
			id:         "1001",
			title:      "2024春 主选",
			tips:       "请在规定时间内选课",
			semesterId: "4324",
			lessons: lessonsScript(
				lessonLiteral(354161, "0001", "高等数学", "张三"),
				lessonLiteral(354162, "0002", "线性代数", "李四"),
			),
		},
		{
			id:         "1002",
			title:      "2024春 补选",
			tips:       "补选阶段",
			semesterId: "4324",
			lessons: lessonsScript(
				lessonLiteral(354170, "0101", "数据结构", "王五"),
			),
		},
	}
}
