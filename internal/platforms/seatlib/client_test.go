package seatlib

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"seatgrab/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Header http.Header
	Body   map[string]any
}

func graphqlServer(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		requests = append(requests, recordedRequest{Header: r.Header.Clone(), Body: decoded})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(url string) *Client {
	tel := telemetry.NewSlogAPI(nil)
	return NewClient(
		NewRestyTransport(TransportOptions{}, tel),
		Endpoint{
			GraphqlUrl: url,
			Origin:     "https://wechat.v2.traceint.com",
			Referer:    "https://web.traceint.com/web/index.html",
		},
		tel,
	)
}

func TestAcquireRequestShapes(t *testing.T) {
	table := []struct {
		mode      Mode
		operation string
		variables map[string]any
	}{
		{
			mode:      ModeReserve,
			operation: "save",
			variables: map[string]any{
				"key":         "12,7",
				"libid":       float64(10071),
				"captchaCode": "",
				"captcha":     "",
			},
		},
		{
			mode:      ModeGrab,
			operation: "reserveSeat",
			variables: map[string]any{
				"seatKey":     "12,7",
				"libId":       float64(10071),
				"captchaCode": "",
				"captcha":     "",
			},
		},
	}

	for _, row := range table {
		t.Run(row.mode.String(), func(t *testing.T) {
			srv, requests := graphqlServer(t, http.StatusOK, `{"data":null}`)
			client := newTestClient(srv.URL)

			res, err := client.Acquire(context.Background(), "Authorization=abc", row.mode, "10071", "12,7")
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, res.Status)
			require.Equal(t, `{"data":null}`, res.Body)

			require.Len(t, *requests, 1)
			req := (*requests)[0]
			require.Equal(t, row.operation, req.Body["operationName"])
			require.NotEmpty(t, req.Body["query"])
			if diff := cmp.Diff(row.variables, req.Body["variables"]); diff != "" {
				t.Fatalf("variables mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, "Authorization=abc", req.Header.Get("Cookie"))
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))
			require.Equal(t, "https://wechat.v2.traceint.com", req.Header.Get("Origin"))
			require.Contains(t, req.Header.Get("User-Agent"), "MicroMessenger")
		})
	}
}

func TestAcquireInvalidMode(t *testing.T) {
	srv, requests := graphqlServer(t, http.StatusOK, `{}`)
	client := newTestClient(srv.URL)

	_, err := client.Acquire(context.Background(), "Authorization=abc", Mode(7), "1", "1,1")
	require.Error(t, err)
	require.Empty(t, *requests)
}

func TestErrorStatusIsReturned(t *testing.T) {
	body := `{"errors":[{"msg":"访问被拒绝"}]}`
	srv, _ := graphqlServer(t, http.StatusForbidden, body)
	client := newTestClient(srv.URL)

	res, err := client.SelectLibrary(context.Background(), "Authorization=abc", "lib-a")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, res.Status)
	require.Equal(t, body, res.Body)
}

func TestSelectAndConfirmRequests(t *testing.T) {
	srv, requests := graphqlServer(t, http.StatusOK, `{}`)
	client := newTestClient(srv.URL)

	_, err := client.SelectLibrary(context.Background(), "c=1", "lib-a")
	require.NoError(t, err)
	_, err = client.Confirm(context.Background(), "c=1")
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	require.Equal(t, "libLayout", (*requests)[0].Body["operationName"])
	require.Equal(t, map[string]any{"libId": "lib-a"}, (*requests)[0].Body["variables"])
	require.Equal(t, "prereserve", (*requests)[1].Body["operationName"])
	require.NotContains(t, (*requests)[1].Body, "variables")
}

func TestTransportError(t *testing.T) {
	srv, _ := graphqlServer(t, http.StatusOK, `{}`)
	client := newTestClient(srv.URL)
	srv.Close()

	_, err := client.Confirm(context.Background(), "c=1")
	require.Error(t, err)
}

func TestSuccessResult(t *testing.T) {
	table := []struct {
		name     string
		mode     Mode
		body     string
		expected string
		ok       bool
	}{
		{
			name:     "grab success",
			mode:     ModeGrab,
			body:     `{"data":{"userAuth":{"reserve":{"reserveSeat": true}}}}`,
			expected: "true",
			ok:       true,
		},
		{
			name:     "reserve success",
			mode:     ModeReserve,
			body:     `{"data":{"userAuth":{"prereserve":{"save":"ok"}}}}`,
			expected: `"ok"`,
			ok:       true,
		},
		{
			name: "null success field",
			mode: ModeGrab,
			body: `{"data":{"userAuth":{"reserve":{"reserveSeat":null}}}}`,
		},
		{
			name: "shape of the other mode",
			mode: ModeReserve,
			body: `{"data":{"userAuth":{"reserve":{"reserveSeat":true}}}}`,
		},
		{
			name: "missing data",
			mode: ModeGrab,
			body: `{"errors":[{"msg":"x"}]}`,
		},
		{
			name: "not json",
			mode: ModeGrab,
			body: `<html>bad gateway</html>`,
		},
		{
			name: "unknown mode",
			mode: Mode(0),
			body: `{"data":{"userAuth":{"reserve":{"reserveSeat": true}}}}`,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			result, ok := SuccessResult(row.mode, row.body)
			require.Equal(t, row.ok, ok)
			require.Equal(t, row.expected, result)
		})
	}
}

func TestDecodePrereservations(t *testing.T) {
	list := `{"data":{"userAuth":{"prereserve":{"prereserve":[
		{"day":"2024-05-02","lib_id":10071,"seat_key":"12,7","seat_name":"45","is_used":false,"user_mobile":"","id":3,"lib_name":"三楼西"}
	]}}}}`
	rows, err := DecodePrereservations(list)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "45", rows[0].SeatName)
	require.Equal(t, "2024-05-02 三楼西 seat 45 (used: false)", rows[0].String())

	single := `{"data":{"userAuth":{"prereserve":{"prereserve":{"day":"2024-05-02","lib_id":"a","seat_name":"1","lib_name":"r"}}}}}`
	rows, err = DecodePrereservations(single)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0].LibID)

	rows, err = DecodePrereservations(`{"data":{"userAuth":{"prereserve":{"prereserve":null}}}}`)
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = DecodePrereservations(`{"errors":[]}`)
	require.Error(t, err)
	_, err = DecodePrereservations(`nope`)
	require.Error(t, err)
}
