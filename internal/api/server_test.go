package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/periph/conn/gpio"

	hcsr04 "github.com/derekstavis/hc-sr04"
	"github.com/derekstavis/hc-sr04/internal/attr"
	"github.com/derekstavis/hc-sr04/internal/logging"
	"github.com/derekstavis/hc-sr04/line/linetest"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func init() {
	TimeNow = func() time.Time { return fixedNow }
}

// newTestServer serves a sensor whose echo is width µs wide, or absent when
// width is negative.
func newTestServer(t *testing.T, width int) (*httptest.Server, *hcsr04.Sensor) {
	t.Helper()
	p := linetest.NewProvider("4", "17")
	echo := p.Pins["17"]
	clk := clockwork.NewFakeClock()
	polls := 0
	delay := func(d time.Duration) {
		clk.Advance(d)
		if d != hcsr04.PollInterval || width < 0 {
			return
		}
		polls++
		if polls == 1 {
			echo.Edge(gpio.High)
		} else if polls == 1+width {
			echo.Edge(gpio.Low)
			polls = 0
		}
	}
	s, err := hcsr04.New(p, "4", "17",
		hcsr04.WithClock(clk), hcsr04.WithDelay(delay), hcsr04.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("initializing sensor: %s", err)
	}
	srv := NewServer(attr.New(s), ServerOptions{Logger: logging.Discard()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts, s
}

func get(t *testing.T, url string) (int, string, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %s", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %s", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(b)
}

func TestValue(t *testing.T) {
	for _, tc := range []struct {
		width int
		want  string
	}{
		{150, "150\n"},
		{-1, "-1\n"},
	} {
		ts, _ := newTestServer(t, tc.width)
		code, ctype, body := get(t, ts.URL+ValuePath)
		if code != http.StatusOK {
			t.Errorf("GET value: status %d, body %q", code, body)
		}
		if !strings.HasPrefix(ctype, "text/plain") {
			t.Errorf("GET value: content type %q", ctype)
		}
		if body != tc.want {
			t.Errorf("GET value: want %q, got %q", tc.want, body)
		}
	}
}

func TestValueRejectsWrites(t *testing.T) {
	ts, _ := newTestServer(t, 150)
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req, err := http.NewRequest(method, ts.URL+ValuePath, strings.NewReader("42\n"))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s value: %s", method, err)
		}
		var apiErr APIError
		err = json.NewDecoder(resp.Body).Decode(&apiErr)
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s value: want 405, got %d", method, resp.StatusCode)
		}
		if err != nil || apiErr.Error != attr.ErrReadOnly.Error() {
			t.Errorf("%s value: body %+v (%v)", method, apiErr, err)
		}
		if got := resp.Header.Get("Allow"); got != http.MethodGet {
			t.Errorf("%s value: Allow %q", method, got)
		}
	}
}

func TestValueClosedSensor(t *testing.T) {
	ts, s := newTestServer(t, 150)
	s.Close()
	code, _, body := get(t, ts.URL+ValuePath)
	if code != http.StatusServiceUnavailable {
		t.Errorf("GET value on closed sensor: status %d, body %q", code, body)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, 150)
	code, ctype, body := get(t, ts.URL+"/v1/healthz")
	if code != http.StatusOK || !strings.HasPrefix(ctype, "application/json") {
		t.Fatalf("GET healthz: %d %q", code, ctype)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decoding healthz: %s", err)
	}
	if got["status"] != "ok" || got["timestamp"] != fixedNow.Format(time.RFC3339) {
		t.Errorf("healthz body: %v", got)
	}

	resp, err := http.Post(ts.URL+"/v1/healthz", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST healthz: want 405, got %d", resp.StatusCode)
	}
}
