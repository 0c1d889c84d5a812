package eamis

// ElectProfile is one course election window listed on the landing page.
type ElectProfile struct {
	Id    string `json:"id"`
	Title string `json:"title"`
	Tips  string `json:"tips"`
}

type LessonArrangeInfo struct {
	WeekDay         int    `json:"weekDay"`
	WeekState       string `json:"weekState"`
	StartUnit       int    `json:"startUnit"`
	EndUnit         int    `json:"endUnit"`
	WeekStateDigest string `json:"weekStateDigest"`
	StartTime       int    `json:"startTime"`
	EndTime         int    `json:"endTime"`
	// the portal always sends these two keys but they may be null
	ExpLessonGroup   *string `json:"expLessonGroup"`
	ExpLessonGroupNo *int    `json:"expLessonGroupNo"`
	RoomIds          string  `json:"roomIds"`
	Rooms            string  `json:"rooms"`
}

// LessonData is a single course section offered in a profile. Id is used to
// elect the lesson, No is the human readable lesson number.
type LessonData struct {
	Id               int                 `json:"id"`
	No               string              `json:"no"`
	Name             string              `json:"name"`
	LimitCount       int                 `json:"limitCount"`
	PlanLimitCount   int                 `json:"planLimitCount"`
	UnplanLimitCount int                 `json:"unplanLimitCount"`
	Code             string              `json:"code"`
	Credits          float64             `json:"credits"`
	CourseId         int                 `json:"courseId"`
	StartWeek        int                 `json:"startWeek"`
	EndWeek          int                 `json:"endWeek"`
	CourseTypeId     int                 `json:"courseTypeId"`
	CourseTypeName   string              `json:"courseTypeName"`
	CourseTypeCode   string              `json:"courseTypeCode"`
	Scheduled        bool                `json:"scheduled"`
	HasTextBook      bool                `json:"hasTextBook"`
	Period           int                 `json:"period"`
	WeekHour         int                 `json:"weekHour"`
	Withdrawable     bool                `json:"withdrawable"`
	LangTypeName     string              `json:"langTypeName"`
	Textbooks        string              `json:"textbooks"`
	Teachers         string              `json:"teachers"`
	TeacherIds       string              `json:"teacherIds"`
	CampusCode       string              `json:"campusCode"`
	CampusName       string              `json:"campusName"`
	MidWithdraw      string              `json:"midWithdraw"`
	ReservedCount    string              `json:"reservedCount"`
	Remark           string              `json:"remark"`
	ArrangeInfo      []LessonArrangeInfo `json:"arrangeInfo"`
	ExpLessonGroups  []string            `json:"expLessonGroups"`
}

type ExpLessonGroup struct {
	IndexNo          int `json:"indexNo"`
	StdCount         int `json:"stdCount"`
	StdCountLimit    int `json:"stdCountLimit"`
	ProStdCountLimit int `json:"proStdCountLimit"`
}

// StdCount is the enrollment counters of a lesson.
type StdCount struct {
	Sc    int `json:"sc"`
	Lc    int `json:"lc"`
	Upsc  int `json:"upsc"`
	Uplc  int `json:"uplc"`
	Plc   int `json:"plc"`
	Puplc int `json:"puplc"`
	// only present for lessons split into experiment groups
	ExpLessonGroups map[string]ExpLessonGroup `json:"expLessonGroups,omitempty"`
}

type ElectResultData struct {
	Id             int  `json:"id"`
	VirtualCost    *int `json:"virtualCost,omitempty"`
	PreElect       bool `json:"preElect"`
	DefaultElected bool `json:"defaultElected"`
	Elected        bool `json:"elected"`
}

// ElectResult is the outcome of an election request, Msg is the message
// the portal displays to the user if there was one.
type ElectResult struct {
	Data ElectResultData `json:"data"`
	Msg  *string         `json:"msg"`
}

type Section struct {
	Profile ElectProfile `json:"profile"`
	Lessons []LessonData `json:"lessons"`
}

// FullData is a snapshot of every profile's lessons and the enrollment
// counters of the semester they belong to.
type FullData struct {
	SemesterId string              `json:"semester_id"`
	Sections   []Section           `json:"sections"`
	StdCount   map[string]StdCount `json:"std_count"`
}
