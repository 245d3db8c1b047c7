package seatlib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"seatgrab/internal/components/assert"
	"seatgrab/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("platforms/seatlib")

const (
	report_client_graphql = "client.graphql"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 NetType/WIFI MicroMessenger/7.0.20.1781(0x6700143B) WindowsWechat(0x63090c33) XWEB/13603 Flue"

// Endpoint describes where the reservation service lives and which browser it expects to talk to.
type Endpoint struct {
	GraphqlUrl   string `json:"graphql_url"`
	WebsocketUrl string `json:"websocket_url"`
	Origin       string `json:"origin"`
	Referer      string `json:"referer"`
	UserAgent    string `json:"user_agent"`
}

func (e Endpoint) userAgent() string {
	if e.UserAgent == "" {
		return defaultUserAgent
	}
	return e.UserAgent
}

// Header returns the browser header profile of the graphql calls, without the credential.
func (e Endpoint) Header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", e.userAgent())
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "*/*")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9")
	if e.Origin != "" {
		h.Set("Origin", e.Origin)
	}
	if e.Referer != "" {
		h.Set("Referer", e.Referer)
	}
	return h
}

// QueueHeader returns the browser header profile of the admission queue handshake, without the
// credential.
func (e Endpoint) QueueHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", e.userAgent())
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9")
	if e.Origin != "" {
		h.Set("Origin", e.Origin)
	}
	return h
}

// Client issues the graphql calls of one acquisition attempt. The session cookie is passed per
// call and never stored.
type Client struct {
	transport Transport
	endpoint  Endpoint
	tel       telemetry.API
}

func NewClient(transport Transport, endpoint Endpoint, tel telemetry.API) *Client {
	assert.NotNil(transport)
	assert.NotEmptyStr(endpoint.GraphqlUrl)
	return &Client{
		transport: transport,
		endpoint:  endpoint,
		tel:       telemetry.NewScopedAPI("seatlib", tel),
	}
}

func (c *Client) graphqlQuery(ctx context.Context, cookie, name, query string, variables any) (Response, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("graphql:%s", name), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(attribute.String("custom.name", name))
	serialized, err := json.Marshal(variables)
	if err == nil {
		span.SetAttributes(attribute.String("custom.variables", string(serialized)))
	}

	header := c.endpoint.Header()
	header.Set("Cookie", cookie)

	res, err := c.transport.Post(ctx, c.endpoint.GraphqlUrl, header, graphqlQueryObject{
		Name:      name,
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		c.tel.ReportWarning(report_client_graphql, fmt.Errorf("%s: %w", name, err))
		return Response{}, err
	}

	span.SetAttributes(attribute.Int("http.status_code", res.Status))
	if res.Status >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", res.Status))
	}
	return res, nil
}

// SelectLibrary opens the layout of a room, the service expects it before a seat in that room is
// acquired.
func (c *Client) SelectLibrary(ctx context.Context, cookie, libID string) (Response, error) {
	return c.graphqlQuery(ctx, cookie, "libLayout", libLayoutQuery, libLayoutVariables{
		LibID: libIDValue(libID),
	})
}

// Acquire issues the acquisition mutation of `mode` for a seat.
func (c *Client) Acquire(ctx context.Context, cookie string, mode Mode, libID, seatKey string) (Response, error) {
	switch mode {
	case ModeReserve:
		return c.graphqlQuery(ctx, cookie, "save", saveQuery, saveVariables{
			Key:   seatKey,
			LibID: libIDValue(libID),
		})
	case ModeGrab:
		return c.graphqlQuery(ctx, cookie, "reserveSeat", reserveSeatQuery, reserveSeatVariables{
			SeatKey: seatKey,
			LibID:   libIDValue(libID),
		})
	}
	return Response{}, fmt.Errorf("unknown acquisition mode %d", int(mode))
}

// Confirm lists the current reservations of the session.
func (c *Client) Confirm(ctx context.Context, cookie string) (Response, error) {
	return c.graphqlQuery(ctx, cookie, "prereserve", prereserveQuery, nil)
}
