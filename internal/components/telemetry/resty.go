package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

// MessageOutput receives a full dump of each HTTP exchange, it is meant for
// inspecting what the portal actually sent back when the markup changes.
type MessageOutput interface {
	Write(id string, contents string)
}

type instrumentResty struct {
	tel       API
	tracer    trace.Tracer
	output    MessageOutput
	idcounter *uint64
}

// InstrumentResty attaches debug reports, error reports and an otel span to
// every request made by client. `output` may be nil.
func InstrumentResty(client *resty.Client, tel API, tracerName string, output MessageOutput) {
	var idcounter uint64
	i := instrumentResty{
		tel:       tel,
		tracer:    otel.Tracer(tracerName),
		output:    output,
		idcounter: &idcounter,
	}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id uint64
	// startTime does not need to rely on chrono because it does not depend on the
	// absolute time, just the difference in time.
	startTime time.Time
}

func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	start := time.Now()
	ctx, _ := i.tracer.Start(req.Context(), req.Method)

	id := atomic.AddUint64(i.idcounter, 1)
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		startTime: start,
	})
	i.tel.ReportDebug(report_resty_request, id, req.Method, req.URL)

	req.SetContext(ctx)
	return nil
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	end := time.Now()
	ctx := res.Request.Context()

	span := trace.SpanFromContext(ctx)
	defer span.End()

	reqCtx, ok := ctx.Value(reqCtxKey).(reqCtx)
	if !ok {
		panic("failed to get request context")
	}

	// setting request attributes here since res.Request.RawRequest is nil in onBeforeRequest
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	if res.RawResponse != nil {
		span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	}
	if res.Request.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	}

	duration := end.Sub(reqCtx.startTime)
	i.tel.ReportDebug(
		report_resty_response,
		reqCtx.id,
		duration.String(),
		res.Status(),
	)

	if i.output != nil {
		i.output.Write(strconv.FormatUint(reqCtx.id, 10), formatHttpMessage(res))
	}

	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	end := time.Now()
	ctx := req.Context()

	span := trace.SpanFromContext(ctx)
	defer span.End()
	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	span.SetName(fmt.Sprintf("http %s", req.Method))

	var duration time.Duration
	reqCtx, ok := ctx.Value(reqCtxKey).(reqCtx)
	if ok {
		duration = end.Sub(reqCtx.startTime)
	}

	i.tel.ReportBroken(
		report_resty_response,
		err,
		req.Method,
		req.URL,
		duration,
	)
}

func formatHeaders(headers http.Header) string {
	var out strings.Builder
	for k, vals := range headers {
		for _, v := range vals {
			out.WriteString(fmt.Sprintf("%s: %s\n", k, v))
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	if body == nil {
		return "<NO BODY AVAILABLE>"
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response url
// 7: response headers in ("Key: Value" format)
// 8: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

func formatHttpMessage(res *resty.Response) string {
	var requestHeaders, requestBody string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
		requestBody = formatRequestBody(res.Request.RawRequest)
	}
	responseHeaders := formatHeaders(res.Header())

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		res.Request.Method, res.Request.URL,
		requestHeaders,
		requestBody,

		strconv.Itoa(res.StatusCode()), responseUrl,
		responseHeaders,
		res.String(),
	)
}
