package seatlib

import (
	"context"
	"net/http"
	"time"

	"seatgrab/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// Response is a raw http response, the status is captured whatever it is because business failures
// regularly ride on a 200.
type Response struct {
	Status int
	Body   string
}

// Transport posts a json-serializable body to a url.
//
// note: fault injection point
type Transport interface {
	Post(ctx context.Context, url string, header http.Header, body any) (Response, error)
}

type TransportOptions struct {
	Timeout time.Duration
	// BrowserFingerprint makes the tls handshake and default headers look like a desktop browser.
	BrowserFingerprint bool
	// Dump reports every full http exchange (with credentials redacted) as debug telemetry.
	Dump bool
}

// RestyTransport is the standard implementation of Transport.
type RestyTransport struct {
	http *resty.Client
}

func NewRestyTransport(opts TransportOptions, tel telemetry.API) RestyTransport {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.BrowserFingerprint {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("seatlib_http", tel), opts.Dump)
	return RestyTransport{http: client}
}

func (t RestyTransport) Post(ctx context.Context, url string, header http.Header, body any) (Response, error) {
	req := t.http.R().
		SetContext(ctx).
		SetBody(body)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	res, err := req.Post(url)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Status: res.StatusCode(),
		Body:   res.String(),
	}, nil
}
