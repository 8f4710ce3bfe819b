package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/reviewbot/core/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	keepAliveInterval = 30 * time.Second
	// responseSlack is added on top of the long poll timeout so an idle
	// getUpdates call is not cut off by the transport.
	responseSlack = 5 * time.Second
	dialRetries   = 3
	dialBackoff   = 500 * time.Millisecond
)

// BuildHTTPClient returns the Bot API client. Requests that never reached
// Telegram are retried; anything else is left to the caller so a sent
// message is never duplicated.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: pollTimeout + responseSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   pollTimeout + 2*responseSlack,
		Transport: &dialRetryTransport{base: transport, retries: dialRetries, backoff: dialBackoff},
	}
}

type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || attempt >= t.retries || !unsent(err) {
			return resp, err
		}
		if req.Body != nil && req.GetBody == nil {
			return nil, err
		}
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, err
			}
			req = req.Clone(req.Context())
			req.Body = body
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

func unsent(err error) bool {
	switch netutil.Classify(err) {
	case netutil.KindDial, netutil.KindDNS:
		return true
	}
	return false
}
